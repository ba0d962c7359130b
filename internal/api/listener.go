package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haedwin/entity-receiver/internal/receiver"
)

// listenerStatus is the response shape for listener endpoints.
type listenerStatus struct {
	Enabled bool           `json:"enabled"`
	Port    int            `json:"port"`
	Stats   receiver.Stats `json:"stats"`
}

// listenerRequest is the request body for PUT /api/v1/listener.
type listenerRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleGetListener returns the listener's running state and counters.
//
// GET /api/v1/listener
func (s *Server) handleGetListener(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listenerStatus{
		Enabled: s.listener.IsRunning(),
		Port:    s.listener.Port(),
		Stats:   s.listener.GetStats(),
	})
}

// handleSetListener starts or stops the UDP listener.
// Mirrors the broadcaster-side switch: disabling pauses ingest without
// clearing the registry.
//
// PUT /api/v1/listener {"enabled": bool}
func (s *Server) handleSetListener(w http.ResponseWriter, r *http.Request) {
	var req listenerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled field is required")
		return
	}

	if *req.Enabled {
		if err := s.listener.Start(); err != nil {
			if errors.Is(err, receiver.ErrBind) {
				writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
				return
			}
			writeInternalError(w, "starting listener")
			return
		}
	} else {
		s.listener.Stop()
	}

	status := listenerStatus{
		Enabled: s.listener.IsRunning(),
		Port:    s.listener.Port(),
		Stats:   s.listener.GetStats(),
	}

	s.logger.Info("listener switched", "enabled", status.Enabled)
	if s.hub != nil {
		s.hub.Broadcast(ChannelListenerStatus, status)
	}
	if s.onListenerChange != nil {
		s.onListenerChange(status.Enabled)
	}

	writeJSON(w, http.StatusOK, status)
}
