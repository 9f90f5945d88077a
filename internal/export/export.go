// Package export writes JSONL snapshots of the catalog to one or more
// destinations on a schedule. Snapshots are full, not incremental: each run
// re-exports every card, so a missed run costs freshness, not correctness.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/landscapehq/landscape/internal/model"
)

// Source is the slice of the persistence interface the exporter needs.
// store.Store implementations satisfy it.
type Source interface {
	ListCards(ctx context.Context, filter model.CardFilter) ([]*model.Card, int, error)
	GetTags(ctx context.Context, cardID string) ([]string, error)
	GetComments(ctx context.Context, cardID string) ([]*model.Comment, error)
	GetRelations(ctx context.Context, cardID string) ([]*model.Relation, error)
}

// header is the first JSONL record written by WriteJSONL.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	CardCount     int       `json:"card_count"`
	RelationCount int       `json:"relation_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WriteJSONL writes the full catalog as JSONL to w. Cards are sorted by ID
// and carry embedded tags and comments; relations follow as their own
// records, each written once even though two cards share it.
func WriteJSONL(ctx context.Context, src Source, w io.Writer) error {
	cards, _, err := src.ListCards(ctx, model.CardFilter{Sort: "created_at"})
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}

	relations := make(map[string]*model.Relation)
	for _, c := range cards {
		tags, err := src.GetTags(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("get tags for %s: %w", c.ID, err)
		}
		c.Tags = tags

		comments, err := src.GetComments(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("get comments for %s: %w", c.ID, err)
		}
		c.Comments = comments

		rels, err := src.GetRelations(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("get relations for %s: %w", c.ID, err)
		}
		for _, r := range rels {
			relations[r.ID] = r
		}
	}

	sort.Slice(cards, func(i, j int) bool {
		return cards[i].ID < cards[j].ID
	})

	relList := make([]*model.Relation, 0, len(relations))
	for _, r := range relations {
		relList = append(relList, r)
	}
	sort.Slice(relList, func(i, j int) bool {
		return relList[i].ID < relList[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:       "1",
		Type:          "header",
		Timestamp:     time.Now().UTC(),
		CardCount:     len(cards),
		RelationCount: len(relList),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, c := range cards {
		if err := enc.Encode(record{Type: "card", Data: c}); err != nil {
			return fmt.Errorf("encode card %s: %w", c.ID, err)
		}
	}
	for _, r := range relList {
		if err := enc.Encode(record{Type: "relation", Data: r}); err != nil {
			return fmt.Errorf("encode relation %s: %w", r.ID, err)
		}
	}

	return nil
}
