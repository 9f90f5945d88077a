package events

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/landscapehq/landscape/internal/model"
)

// maxTextLen caps free-text fields carried in event payloads. Full content
// stays in the store; the event only carries a bounded snapshot.
const maxTextLen = 2048

// Entity type labels used in event records for non-card subjects.
const (
	EntityRelation = "relation"
	EntityTag      = "tag"
	EntityComment  = "comment"
)

// CardSnapshot is the bounded card state carried in card event payloads.
type CardSnapshot struct {
	ID          string          `json:"id"`
	Type        model.CardType  `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Lifecycle   model.Lifecycle `json:"lifecycle,omitempty"`
	Owner       string          `json:"owner,omitempty"`
	Status      model.Status    `json:"status"`
	Completion  float64         `json:"completion"`
}

// NewCardSnapshot captures the card state at event time.
func NewCardSnapshot(c *model.Card) CardSnapshot {
	return CardSnapshot{
		ID:          c.ID,
		Type:        c.Type,
		Name:        c.Name,
		Description: truncate(c.Description),
		Lifecycle:   c.Lifecycle,
		Owner:       c.Owner,
		Status:      c.Status,
		Completion:  c.Completion,
	}
}

// RelationSnapshot is carried by relation events. It always names both sides
// so consumers (e.g. the completion scorer) can react for source and target
// independently.
type RelationSnapshot struct {
	ID       string             `json:"id"`
	Type     model.RelationType `json:"type"`
	SourceID string             `json:"source_id"`
	TargetID string             `json:"target_id"`
}

// NewRelationSnapshot captures the relation state at event time.
func NewRelationSnapshot(r *model.Relation) RelationSnapshot {
	return RelationSnapshot{ID: r.ID, Type: r.Type, SourceID: r.SourceID, TargetID: r.TargetID}
}

// TagPayload is carried by tag.assigned and tag.removed events.
type TagPayload struct {
	CardID string `json:"card_id"`
	Tag    string `json:"tag"`
}

// CommentSnapshot is carried by comment.created events.
type CommentSnapshot struct {
	ID     string `json:"id"`
	CardID string `json:"card_id"`
	Author string `json:"author,omitempty"`
	Body   string `json:"body"`
}

// NewCommentSnapshot captures the comment state at event time.
func NewCommentSnapshot(c *model.Comment) CommentSnapshot {
	return CommentSnapshot{ID: c.ID, CardID: c.CardID, Author: c.Author, Body: truncate(c.Body)}
}

// MustMarshal marshals a payload struct, returning nil on the (statically
// impossible for the types above) marshal failure rather than propagating it.
func MustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func truncate(s string) string {
	if len(s) <= maxTextLen {
		return s
	}
	// Back up to a rune boundary so the cut never splits a character.
	cut := maxTextLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
