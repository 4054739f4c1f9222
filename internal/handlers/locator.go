package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"campus-locator/internal/models"
)

const streamHeartbeat = 25 * time.Second

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := s.locator.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teachers)
}

// handleTeacherStream pushes the locator list as server-sent events, once on connect
// and again after every change. Only the latest list is kept for a slow client.
func (s *Server) handleTeacherStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming is not supported")
		return
	}

	updates := make(chan []models.TeacherLocation, 1)
	stop, err := s.locator.Watch(r.Context(), func(list []models.TeacherLocation) {
		select {
		case <-updates:
		default:
		}
		updates <- list
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case list := <-updates:
			data, err := json.Marshal(list)
			if err != nil {
				log.Printf("❌ Failed to encode locator update: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: teachers\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
