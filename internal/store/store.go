package store

import (
	"context"
	"errors"

	"github.com/landscapehq/landscape/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the persistence interface for the catalog.
type Store interface {
	// Card CRUD
	CreateCard(ctx context.Context, card *model.Card) error
	GetCard(ctx context.Context, id string) (*model.Card, error)
	ListCards(ctx context.Context, filter model.CardFilter) ([]*model.Card, int, error) // returns cards, total count, error
	UpdateCard(ctx context.Context, card *model.Card) error
	ArchiveCard(ctx context.Context, id string, archivedBy string) (*model.Card, error)
	DeleteCard(ctx context.Context, id string) error

	// Derived state. UpdateCardCompletion writes only the completion column;
	// it must not touch updated_at so a score write never looks like a user edit.
	UpdateCardCompletion(ctx context.Context, id string, completion float64) error

	// Relations
	CreateRelation(ctx context.Context, rel *model.Relation) error
	GetRelation(ctx context.Context, id string) (*model.Relation, error)
	DeleteRelation(ctx context.Context, id string) error
	GetRelations(ctx context.Context, cardID string) ([]*model.Relation, error)
	CountRelations(ctx context.Context, cardID string) (int, error)

	// Tags. AssignTag reports whether the assignment was new for the card
	// (false = already assigned, no-op) and whether the tag name itself was
	// new to the catalog.
	AssignTag(ctx context.Context, cardID string, tag string) (assigned bool, created bool, err error)
	RemoveTag(ctx context.Context, cardID string, tag string) error
	GetTags(ctx context.Context, cardID string) ([]string, error)

	// Comments
	AddComment(ctx context.Context, comment *model.Comment) error
	GetComments(ctx context.Context, cardID string) ([]*model.Comment, error)

	// Event log
	RecordEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, int, error) // newest first, with total count

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
