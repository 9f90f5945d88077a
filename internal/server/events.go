package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/landscapehq/landscape/internal/model"
	"github.com/landscapehq/landscape/internal/store"
)

// handleListEvents handles GET /v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	if v := q.Get("type"); v != "" {
		t := model.EventType(v)
		if !t.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown event type "+v)
			return
		}
		filter.Type = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	events, total, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []*model.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
	})
}

// handleSubscriptionRoster handles GET /v1/subscriptions. It exposes a
// point-in-time view of live stream subscriptions for operators.
func (s *Server) handleSubscriptionRoster(w http.ResponseWriter, _ *http.Request) {
	roster := s.bus.Roster()
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": roster,
		"total":         len(roster),
	})
}

// handleStats handles GET /v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, totalCards, err := s.store.ListCards(ctx, model.CardFilter{Limit: 1})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count cards")
		return
	}
	_, archived, err := s.store.ListCards(ctx, model.CardFilter{
		Status: []model.Status{model.StatusArchived},
		Limit:  1,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count archived cards")
		return
	}
	_, totalEvents, err := s.store.ListEvents(ctx, model.EventFilter{Limit: 1})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cards_total":      totalCards,
		"cards_active":     totalCards - archived,
		"cards_archived":   archived,
		"events_total":     totalEvents,
		"live_subscribers": s.bus.SubscriberCount(),
	})
}

// handleRecomputeCard handles POST /v1/cards/{id}/recompute.
func (s *Server) handleRecomputeCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	// The scorer treats a missing card as a no-op; the admin endpoint
	// reports it explicitly instead.
	if _, err := s.store.GetCard(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get card")
		return
	}

	score, changed, err := s.scorer.Recompute(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to recompute score")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"completion": score,
		"changed":    changed,
	})
}

// handleRecomputeAll handles POST /v1/recompute. It sweeps every card and
// recomputes its completion score, reporting how many scores changed.
func (s *Server) handleRecomputeAll(w http.ResponseWriter, r *http.Request) {
	const pageSize = 200

	var recomputed, changed int
	for offset := 0; ; offset += pageSize {
		cards, _, err := s.store.ListCards(r.Context(), model.CardFilter{
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list cards")
			return
		}
		if len(cards) == 0 {
			break
		}

		for _, c := range cards {
			_, didChange, err := s.scorer.Recompute(r.Context(), c.ID)
			if err != nil {
				s.logger.Warn("sweep recompute failed", "card_id", c.ID, "error", err)
				continue
			}
			recomputed++
			if didChange {
				changed++
			}
		}

		if len(cards) < pageSize {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recomputed": recomputed,
		"changed":    changed,
	})
}
