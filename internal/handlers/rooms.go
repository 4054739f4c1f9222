package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"campus-locator/internal/services"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

type roomResponse struct {
	Code string `json:"code"`
	Room string `json:"room"`
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	writeJSON(w, http.StatusOK, roomResponse{Code: code, Room: services.ResolveRoom(code)})
}

// handleRoomQR renders the code to print at the room door. The QR payload is the raw code.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > maxQRSize {
			writeError(w, http.StatusBadRequest, "invalid_size", "Invalid size")
			return
		}
		size = n
	}

	png, err := qrcode.Encode(code, qrcode.Medium, size)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Room", services.ResolveRoom(code))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
