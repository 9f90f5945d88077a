package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/landscapehq/landscape/internal/events"
	"github.com/landscapehq/landscape/internal/idgen"
	"github.com/landscapehq/landscape/internal/model"
	"github.com/landscapehq/landscape/internal/store"
)

// createCardInput holds the parameters for creating a card.
type createCardInput struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Lifecycle   string          `json:"lifecycle"`
	Owner       string          `json:"owner"`
	Attributes  json.RawMessage `json:"attributes"`
	Tags        []string        `json:"tags"`
	CreatedBy   string          `json:"created_by"`
}

// createCard validates input, persists a new card with tags, and publishes a
// card.created event. Returns inputError for validation failures.
func (s *Server) createCard(ctx context.Context, in createCardInput) (*model.Card, error) {
	now := time.Now().UTC()
	id, err := idgen.Generate(idgen.PrefixCard)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}

	card := &model.Card{
		ID:          id,
		Type:        model.CardType(in.Type),
		Name:        in.Name,
		Description: in.Description,
		Lifecycle:   model.Lifecycle(in.Lifecycle),
		Owner:       in.Owner,
		Status:      model.StatusActive,
		CreatedAt:   now,
		CreatedBy:   in.CreatedBy,
		UpdatedAt:   now,
		Tags:        in.Tags,
	}
	if len(in.Attributes) > 0 {
		card.Attributes = in.Attributes
	}

	if err := model.ValidateCard(card); err != nil {
		return nil, inputError("invalid card: " + err.Error())
	}

	// Card row and tag rows commit together.
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateCard(ctx, card); err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}
		for _, tag := range card.Tags {
			if _, _, err := tx.AssignTag(ctx, card.ID, tag); err != nil {
				return fmt.Errorf("failed to assign tag %q: %w", tag, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.PublishInput{
		Type:       model.EventCardCreated,
		EntityType: "card",
		EntityID:   card.ID,
		Actor:      card.CreatedBy,
		Payload:    events.MustMarshal(events.NewCardSnapshot(card)),
	})

	return card, nil
}

// updateCardInput holds the parameters for updating a card. Pointer fields
// indicate optionality: nil means "don't change".
type updateCardInput struct {
	Name        *string         `json:"name,omitempty"`
	Type        *string         `json:"type,omitempty"`
	Description *string         `json:"description,omitempty"`
	Lifecycle   *string         `json:"lifecycle,omitempty"`
	Owner       *string         `json:"owner,omitempty"`
	Status      *string         `json:"status,omitempty"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Actor       string          `json:"actor,omitempty"`

	// tagsSet tracks whether tags were provided at all, since an empty list
	// means "remove every tag", distinct from "not provided".
	tagsSet bool
}

// updateCard applies partial updates to an existing card, persists them, and
// publishes a card.updated event carrying the changed fields. Returns
// inputError for validation failures.
func (s *Server) updateCard(ctx context.Context, id string, in updateCardInput) (*model.Card, error) {
	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]any)

	if in.Name != nil {
		card.Name = *in.Name
		changes["name"] = card.Name
	}
	if in.Type != nil {
		card.Type = model.CardType(*in.Type)
		changes["type"] = card.Type
	}
	if in.Description != nil {
		card.Description = *in.Description
		changes["description"] = card.Description
	}
	if in.Lifecycle != nil {
		card.Lifecycle = model.Lifecycle(*in.Lifecycle)
		changes["lifecycle"] = card.Lifecycle
	}
	if in.Owner != nil {
		card.Owner = *in.Owner
		changes["owner"] = card.Owner
	}
	if in.Status != nil {
		card.Status = model.Status(*in.Status)
		changes["status"] = card.Status
	}

	if in.Attributes != nil {
		// Merge incoming attributes into existing ones (patch semantics).
		existing := make(map[string]any)
		if len(card.Attributes) > 0 {
			_ = json.Unmarshal(card.Attributes, &existing)
		}
		var patch map[string]any
		if err := json.Unmarshal(in.Attributes, &patch); err != nil {
			return nil, inputError("invalid attributes: not a JSON object")
		}
		for k, v := range patch {
			existing[k] = v
		}
		merged, mergeErr := json.Marshal(existing)
		if mergeErr != nil {
			return nil, fmt.Errorf("failed to merge attributes: %w", mergeErr)
		}
		card.Attributes = merged
		changes["attributes"] = json.RawMessage(merged)
	}
	if in.tagsSet {
		card.Tags = in.Tags
		changes["tags"] = card.Tags
	}

	// Reconcile ArchivedAt with Status changes.
	if card.Status == model.StatusArchived && card.ArchivedAt == nil {
		now := time.Now().UTC()
		card.ArchivedAt = &now
		card.ArchivedBy = in.Actor
		changes["archived_at"] = card.ArchivedAt
	}
	if card.Status != model.StatusArchived && card.ArchivedAt != nil {
		card.ArchivedAt = nil
		card.ArchivedBy = ""
		changes["archived_at"] = nil
	}

	card.UpdatedAt = time.Now().UTC()

	if err := model.ValidateCard(card); err != nil {
		return nil, inputError("invalid card: " + err.Error())
	}

	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}

	if _, ok := changes["tags"]; ok {
		if err := s.reconcileTags(ctx, card.ID, card.Tags, in.Actor); err != nil {
			return nil, fmt.Errorf("failed to reconcile tags: %w", err)
		}
	}

	s.recordAndPublish(ctx, events.PublishInput{
		Type:       model.EventCardUpdated,
		EntityType: "card",
		EntityID:   card.ID,
		Actor:      in.Actor,
		Payload:    events.MustMarshal(events.NewCardSnapshot(card)),
		Changes:    events.MustMarshal(changes),
	})

	return card, nil
}

// reconcileTags compares the desired tags with the stored tags and
// assigns/removes as needed, publishing a tag event per change.
func (s *Server) reconcileTags(ctx context.Context, cardID string, newTags []string, actor string) error {
	existing, err := s.store.GetTags(ctx, cardID)
	if err != nil {
		return err
	}

	existingSet := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		existingSet[t] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newTags))
	for _, t := range newTags {
		newSet[t] = struct{}{}
	}

	for _, t := range existing {
		if _, ok := newSet[t]; !ok {
			if err := s.store.RemoveTag(ctx, cardID, t); err != nil {
				return err
			}
			s.publishTagEvent(ctx, model.EventTagRemoved, cardID, t, actor)
		}
	}
	for _, t := range newTags {
		if _, ok := existingSet[t]; !ok {
			_, created, err := s.store.AssignTag(ctx, cardID, t)
			if err != nil {
				return err
			}
			if created {
				s.publishTagEvent(ctx, model.EventTagCreated, cardID, t, actor)
			}
			s.publishTagEvent(ctx, model.EventTagAssigned, cardID, t, actor)
		}
	}

	return nil
}

func (s *Server) publishTagEvent(ctx context.Context, t model.EventType, cardID, tag, actor string) {
	s.recordAndPublish(ctx, events.PublishInput{
		Type:       t,
		EntityType: events.EntityTag,
		EntityID:   cardID,
		Actor:      actor,
		Payload:    events.MustMarshal(events.TagPayload{CardID: cardID, Tag: tag}),
	})
}

// handleCreateCard handles POST /v1/cards.
func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var in createCardInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	card, err := s.createCard(r.Context(), in)
	if err != nil {
		var ie inputError
		if errors.As(err, &ie) {
			writeError(w, http.StatusBadRequest, ie.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, card)
}

// handleListCards handles GET /v1/cards.
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.CardFilter{
		Owner:  q.Get("owner"),
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}

	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.Status(st))
		}
	}
	if v := q.Get("type"); v != "" {
		for _, t := range strings.Split(v, ",") {
			filter.Type = append(filter.Type, model.CardType(t))
		}
	}
	if v := q.Get("lifecycle"); v != "" {
		for _, l := range strings.Split(v, ",") {
			filter.Lifecycle = append(filter.Lifecycle, model.Lifecycle(l))
		}
	}
	if v := q.Get("tags"); v != "" {
		filter.Tags = strings.Split(v, ",")
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

	cards, total, err := s.store.ListCards(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list cards")
		return
	}

	// Ensure cards is never null in JSON output.
	if cards == nil {
		cards = []*model.Card{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cards": cards,
		"total": total,
	})
}

// handleGetCard handles GET /v1/cards/{id}.
func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	card, err := s.store.GetCard(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get card")
		return
	}

	writeJSON(w, http.StatusOK, card)
}

// handleUpdateCard handles PATCH /v1/cards/{id}.
func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	var in updateCardInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// For HTTP/JSON, tag presence is inferred from non-nil.
	if in.Tags != nil {
		in.tagsSet = true
	}

	card, err := s.updateCard(r.Context(), id, in)
	if err != nil {
		var ie inputError
		if errors.As(err, &ie) {
			writeError(w, http.StatusBadRequest, ie.Error())
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, card)
}

// handleArchiveCard handles POST /v1/cards/{id}/archive.
// Accepts an optional JSON body with "archived_by".
func (s *Server) handleArchiveCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	var body struct {
		ArchivedBy string `json:"archived_by"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	card, err := s.store.ArchiveCard(r.Context(), id, body.ArchivedBy)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to archive card")
		return
	}

	s.recordAndPublish(r.Context(), events.PublishInput{
		Type:       model.EventCardArchived,
		EntityType: "card",
		EntityID:   card.ID,
		Actor:      body.ArchivedBy,
		Payload:    events.MustMarshal(events.NewCardSnapshot(card)),
	})

	writeJSON(w, http.StatusOK, card)
}

// handleDeleteCard handles DELETE /v1/cards/{id}.
func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := s.store.DeleteCard(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete card")
		return
	}

	s.recordAndPublish(r.Context(), events.PublishInput{
		Type:       model.EventCardDeleted,
		EntityType: "card",
		EntityID:   id,
		Payload:    events.MustMarshal(map[string]string{"id": id}),
	})

	w.WriteHeader(http.StatusNoContent)
}
