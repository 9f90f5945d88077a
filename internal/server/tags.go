package server

import (
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

// handleGetTags handles GET /v1/cards/{id}/tags.
func (s *Server) handleGetTags(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	tags, err := s.store.GetTags(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get tags")
		return
	}
	if tags == nil {
		tags = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// handleAssignTag handles POST /v1/cards/{id}/tags.
// Publishes tag.created when the tag name is new to the catalog, then
// tag.assigned. Re-assigning an existing tag is a silent no-op.
func (s *Server) handleAssignTag(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	var body struct {
		Tag   string `json:"tag"`
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	// Verify the card exists so a typoed id fails loudly instead of
	// inserting an orphan row error from the foreign key.
	if _, err := s.store.GetCard(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get card")
		return
	}

	assigned, created, err := s.store.AssignTag(r.Context(), id, body.Tag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assign tag")
		return
	}

	if created {
		s.publishTagEvent(r.Context(), model.EventTagCreated, id, body.Tag, body.Actor)
	}
	if assigned {
		s.publishTagEvent(r.Context(), model.EventTagAssigned, id, body.Tag, body.Actor)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"card_id":  id,
		"tag":      body.Tag,
		"assigned": assigned,
	})
}

// handleRemoveTag handles DELETE /v1/cards/{id}/tags/{tag}.
func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tag := r.PathValue("tag")
	if id == "" || tag == "" {
		writeError(w, http.StatusBadRequest, "id and tag are required")
		return
	}

	if err := s.store.RemoveTag(r.Context(), id, tag); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove tag")
		return
	}

	s.publishTagEvent(r.Context(), model.EventTagRemoved, id, tag, "")

	w.WriteHeader(http.StatusNoContent)
}

// handleGetComments handles GET /v1/cards/{id}/comments.
func (s *Server) handleGetComments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	comments, err := s.store.GetComments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get comments")
		return
	}
	if comments == nil {
		comments = []*model.Comment{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// handleAddComment handles POST /v1/cards/{id}/comments.
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	var body struct {
		Author string `json:"author"`
		Body   string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Body == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	if _, err := s.store.GetCard(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get card")
		return
	}

	commentID, err := idgen.Generate(idgen.PrefixComment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to generate ID: %v", err))
		return
	}

	comment := &model.Comment{
		ID:        commentID,
		CardID:    id,
		Author:    body.Author,
		Body:      body.Body,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.AddComment(r.Context(), comment); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add comment")
		return
	}

	s.recordAndPublish(r.Context(), events.PublishInput{
		Type:       model.EventCommentCreated,
		EntityType: events.EntityComment,
		EntityID:   comment.CardID,
		Actor:      comment.Author,
		Payload:    events.MustMarshal(events.NewCommentSnapshot(comment)),
	})

	writeJSON(w, http.StatusCreated, comment)
}
