// Package client provides a transport-agnostic interface for the landscape
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"encoding/json"

	"github.com/landscapehq/landscape/internal/model"
)

// CatalogClient is the interface the CLI commands use to communicate with the
// landscape server. It is implemented by HTTPClient.
type CatalogClient interface {
	// Card CRUD
	CreateCard(ctx context.Context, req *CreateCardRequest) (*model.Card, error)
	GetCard(ctx context.Context, id string) (*model.Card, error)
	ListCards(ctx context.Context, req *ListCardsRequest) (*ListCardsResponse, error)
	UpdateCard(ctx context.Context, id string, req *UpdateCardRequest) (*model.Card, error)
	ArchiveCard(ctx context.Context, id string, archivedBy string) (*model.Card, error)
	DeleteCard(ctx context.Context, id string) error

	// Relations
	CreateRelation(ctx context.Context, req *CreateRelationRequest) (*model.Relation, error)
	DeleteRelation(ctx context.Context, id string) error
	GetCardRelations(ctx context.Context, cardID string) ([]*model.Relation, error)

	// Tags
	AssignTag(ctx context.Context, cardID, tag string) (*AssignTagResponse, error)
	RemoveTag(ctx context.Context, cardID, tag string) error
	GetTags(ctx context.Context, cardID string) ([]string, error)

	// Comments
	AddComment(ctx context.Context, cardID, author, body string) (*model.Comment, error)
	GetComments(ctx context.Context, cardID string) ([]*model.Comment, error)

	// Event log and live stream
	ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error)
	StreamEvents(ctx context.Context, types []string, fn func(*model.Event)) error

	// Scoring
	RecomputeCard(ctx context.Context, id string) (*RecomputeCardResponse, error)
	RecomputeAll(ctx context.Context) (*RecomputeAllResponse, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateCardRequest holds parameters for creating a card.
type CreateCardRequest struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Lifecycle   string          `json:"lifecycle,omitempty"`
	Owner       string          `json:"owner,omitempty"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
}

// ListCardsRequest holds parameters for listing cards.
type ListCardsRequest struct {
	Status    []string `json:"status,omitempty"`
	Type      []string `json:"type,omitempty"`
	Lifecycle []string `json:"lifecycle,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Owner     string   `json:"owner,omitempty"`
	Search    string   `json:"search,omitempty"`
	Sort      string   `json:"sort,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}

// ListCardsResponse is the response from ListCards.
type ListCardsResponse struct {
	Cards []*model.Card `json:"cards"`
	Total int           `json:"total"`
}

// UpdateCardRequest holds optional parameters for updating a card.
// Nil pointer fields mean "don't change".
type UpdateCardRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Lifecycle   *string         `json:"lifecycle,omitempty"`
	Owner       *string         `json:"owner,omitempty"`
	Status      *string         `json:"status,omitempty"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Actor       string          `json:"actor,omitempty"`
}

// CreateRelationRequest holds parameters for creating a relation.
type CreateRelationRequest struct {
	Type        string `json:"type"`
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

// AssignTagResponse is the response from AssignTag.
type AssignTagResponse struct {
	CardID   string `json:"card_id"`
	Tag      string `json:"tag"`
	Assigned bool   `json:"assigned"`
}

// ListEventsRequest holds parameters for querying the event log.
type ListEventsRequest struct {
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Type       string `json:"type,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// ListEventsResponse is the response from ListEvents.
type ListEventsResponse struct {
	Events []*model.Event `json:"events"`
	Total  int            `json:"total"`
}

// RecomputeCardResponse is the response from RecomputeCard.
type RecomputeCardResponse struct {
	ID         string  `json:"id"`
	Completion float64 `json:"completion"`
	Changed    bool    `json:"changed"`
}

// RecomputeAllResponse is the response from RecomputeAll.
type RecomputeAllResponse struct {
	Recomputed int `json:"recomputed"`
	Changed    int `json:"changed"`
}
