package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"campus-locator/internal/models"
	"campus-locator/internal/services"
)

// confirmWriteTimeout bounds the check-in writes, which outlive the request
const confirmWriteTimeout = 30 * time.Second

type activateRequest struct {
	CameraGranted bool `json:"cameraGranted"`
}

type decodeRequest struct {
	Payload string `json:"payload" validate:"required"`
}

type decodeResponse struct {
	Accepted bool                     `json:"accepted"`
	Event    *models.ScanEvent        `json:"event,omitempty"`
	Prompt   string                   `json:"prompt,omitempty"`
	Session  services.CheckInSnapshot `json:"session"`
}

type confirmResponse struct {
	Message string                   `json:"message"`
	Room    string                   `json:"room"`
	Session services.CheckInSnapshot `json:"session"`
}

func (s *Server) machine(r *http.Request) *services.CheckInMachine {
	return s.sessions.Get(accountFromContext(r.Context()).ID)
}

func (s *Server) handleCheckInState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.machine(r).Snapshot())
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	// no body means the client reported no camera permission
	var req activateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}

	m := s.machine(r)
	if err := m.Activate(req.CameraGranted); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	m := s.machine(r)
	event, accepted := m.Decode(req.Payload)
	resp := decodeResponse{Accepted: accepted, Session: m.Snapshot()}
	if accepted {
		resp.Event = &event
		resp.Prompt = services.ConfirmPrompt(event.ResolvedRoom)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	// a teacher backing out or dropping the connection must not cut the writes short
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), confirmWriteTimeout)
	defer cancel()

	m := s.machine(r)
	outcome, err := m.Confirm(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResponse{
		Message: services.CheckInMessage(outcome.Event.ResolvedRoom),
		Room:    outcome.Event.ResolvedRoom,
		Session: m.Snapshot(),
	})
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	s.decline(w, r, false)
}

func (s *Server) handleScanAgain(w http.ResponseWriter, r *http.Request) {
	s.decline(w, r, true)
}

func (s *Server) decline(w http.ResponseWriter, r *http.Request, keepScanning bool) {
	m := s.machine(r)
	if err := m.Decline(keepScanning); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	m := s.machine(r)
	m.Cancel()
	writeJSON(w, http.StatusOK, m.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.machine(r).Snapshot().History)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.machine(r).ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}
