package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/landscapehq/landscape/internal/events"
	"github.com/landscapehq/landscape/internal/idgen"
	"github.com/landscapehq/landscape/internal/model"
	"github.com/landscapehq/landscape/internal/store"
)

// createRelationInput holds the parameters for creating a relation.
type createRelationInput struct {
	Type        string          `json:"type"`
	SourceID    string          `json:"source_id"`
	TargetID    string          `json:"target_id"`
	Description string          `json:"description"`
	Attributes  json.RawMessage `json:"attributes"`
	CreatedBy   string          `json:"created_by"`
}

// createRelation validates input, verifies both endpoints exist, persists the
// relation, and publishes a relation.created event naming both sides.
func (s *Server) createRelation(ctx context.Context, in createRelationInput) (*model.Relation, error) {
	id, err := idgen.Generate(idgen.PrefixRelation)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}

	rel := &model.Relation{
		ID:          id,
		Type:        model.RelationType(in.Type),
		SourceID:    in.SourceID,
		TargetID:    in.TargetID,
		Description: in.Description,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   in.CreatedBy,
	}
	if len(in.Attributes) > 0 {
		rel.Attributes = in.Attributes
	}

	if err := model.ValidateRelation(rel); err != nil {
		return nil, inputError("invalid relation: " + err.Error())
	}

	// Both endpoints must exist; a dangling relation would break scoring.
	if _, err := s.store.GetCard(ctx, rel.SourceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, inputError("source card " + rel.SourceID + " not found")
		}
		return nil, err
	}
	if _, err := s.store.GetCard(ctx, rel.TargetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, inputError("target card " + rel.TargetID + " not found")
		}
		return nil, err
	}

	if err := s.store.CreateRelation(ctx, rel); err != nil {
		return nil, fmt.Errorf("failed to create relation: %w", err)
	}

	s.recordAndPublish(ctx, events.PublishInput{
		Type:       model.EventRelationCreated,
		EntityType: events.EntityRelation,
		EntityID:   rel.ID,
		Actor:      rel.CreatedBy,
		Payload:    events.MustMarshal(events.NewRelationSnapshot(rel)),
	})

	return rel, nil
}

// handleCreateRelation handles POST /v1/relations.
func (s *Server) handleCreateRelation(w http.ResponseWriter, r *http.Request) {
	var in createRelationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rel, err := s.createRelation(r.Context(), in)
	if err != nil {
		var ie inputError
		if errors.As(err, &ie) {
			writeError(w, http.StatusBadRequest, ie.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, rel)
}

// handleGetRelation handles GET /v1/relations/{id}.
func (s *Server) handleGetRelation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	rel, err := s.store.GetRelation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "relation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get relation")
		return
	}

	writeJSON(w, http.StatusOK, rel)
}

// handleDeleteRelation handles DELETE /v1/relations/{id}.
// The relation is fetched first so the deletion event can carry both endpoint
// ids for downstream recomputation.
func (s *Server) handleDeleteRelation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	rel, err := s.store.GetRelation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "relation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get relation")
		return
	}

	if err := s.store.DeleteRelation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "relation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete relation")
		return
	}

	s.recordAndPublish(r.Context(), events.PublishInput{
		Type:       model.EventRelationDeleted,
		EntityType: events.EntityRelation,
		EntityID:   rel.ID,
		Payload:    events.MustMarshal(events.NewRelationSnapshot(rel)),
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleGetCardRelations handles GET /v1/cards/{id}/relations.
func (s *Server) handleGetCardRelations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	rels, err := s.store.GetRelations(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get relations")
		return
	}
	if rels == nil {
		rels = []*model.Relation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"relations": rels})
}
