package model

import (
	"encoding/json"
	"time"
)

// EventType identifies one kind of catalog state change. The set is closed:
// adding a type is a code change, and every switch over EventType should be
// exhaustive.
type EventType string

const (
	EventCardCreated     EventType = "card.created"
	EventCardUpdated     EventType = "card.updated"
	EventCardArchived    EventType = "card.archived"
	EventCardDeleted     EventType = "card.deleted"
	EventRelationCreated EventType = "relation.created"
	EventRelationUpdated EventType = "relation.updated"
	EventRelationDeleted EventType = "relation.deleted"
	EventTagCreated      EventType = "tag.created"
	EventTagAssigned     EventType = "tag.assigned"
	EventTagRemoved      EventType = "tag.removed"
	EventCommentCreated  EventType = "comment.created"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsValid checks whether the event type is a member of the closed set.
func (t EventType) IsValid() bool {
	switch t {
	case EventCardCreated, EventCardUpdated, EventCardArchived, EventCardDeleted,
		EventRelationCreated, EventRelationUpdated, EventRelationDeleted,
		EventTagCreated, EventTagAssigned, EventTagRemoved,
		EventCommentCreated:
		return true
	}
	return false
}

// EventTypes returns all members of the closed event type set.
func EventTypes() []EventType {
	return []EventType{
		EventCardCreated, EventCardUpdated, EventCardArchived, EventCardDeleted,
		EventRelationCreated, EventRelationUpdated, EventRelationDeleted,
		EventTagCreated, EventTagAssigned, EventTagRemoved,
		EventCommentCreated,
	}
}

// Event is an immutable record of one state change. The same record is
// persisted to the event log, streamed to live subscribers, and passed to
// internal handlers; nothing mutates it after construction.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Actor      string          `json:"actor,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
