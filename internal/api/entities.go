package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/haedwin/entity-receiver/internal/entity"
)

// handleListEntities returns all live entities, optionally filtered by
// broadcaster.
//
// GET /api/v1/entities?broadcaster=Remote%20Home%20Assistant
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	records := s.registry.List()

	if broadcaster := r.URL.Query().Get("broadcaster"); broadcaster != "" {
		filtered := make([]entity.Record, 0, len(records))
		for _, rec := range records {
			if rec.BroadcasterName == broadcaster {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": records,
		"count":    len(records),
	})
}

// handleGetEntity returns a single entity by ID.
//
// GET /api/v1/entities/{id}
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, entity.ErrEntityNotFound) {
			writeNotFound(w, "entity not found: "+id)
			return
		}
		writeInternalError(w, "retrieving entity")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteEntity removes an entity from the live registry.
// The entity reappears on its next broadcast; history is unaffected.
//
// DELETE /api/v1/entities/{id}
func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.registry.Remove(id) {
		writeNotFound(w, "entity not found: "+id)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"removed": id})
}

// handleEntityStats returns registry statistics.
//
// GET /api/v1/entities/stats
func (s *Server) handleEntityStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}

// handleEntityHistory returns recent state updates for an entity,
// newest first.
//
// GET /api/v1/entities/{id}/history?limit=50
func (s *Server) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history not enabled")
		return
	}

	id := chi.URLParam(r, "id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("entity history query failed", "entity_id", id, "error", err)
		writeInternalError(w, "querying entity history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": id,
		"entries":   entries,
		"count":     len(entries),
	})
}
