package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/landscapehq/landscape/internal/events"
	"github.com/landscapehq/landscape/internal/metrics"
	"github.com/landscapehq/landscape/internal/model"
	"github.com/landscapehq/landscape/internal/store"
)

// Store is the slice of the persistence interface the scorer needs.
// *store.Store implementations satisfy it.
type Store interface {
	GetCard(ctx context.Context, id string) (*model.Card, error)
	CountRelations(ctx context.Context, cardID string) (int, error)
	UpdateCardCompletion(ctx context.Context, id string, completion float64) error
}

// Scorer recomputes card completion scores in response to mutation events.
type Scorer struct {
	store  Store
	logger *slog.Logger

	mu    sync.RWMutex
	rules *RuleSet
}

// NewScorer creates a scorer over the given store and rule set.
func NewScorer(s Store, rules *RuleSet, logger *slog.Logger) *Scorer {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{store: s, rules: rules, logger: logger}
}

// SetRules swaps in a new rule set. Safe to call while handlers are running;
// in-flight recomputations finish with the rules they started with.
func (s *Scorer) SetRules(rules *RuleSet) {
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
}

func (s *Scorer) currentRules() *RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Register attaches the scorer's handlers to the bus. Card mutations
// recompute the card itself; relation mutations recompute both endpoints,
// since a relation can satisfy the minimum-relation check of either side.
func (s *Scorer) Register(bus *events.Bus) {
	bus.RegisterHandler(model.EventCardCreated, s.HandleCardEvent)
	bus.RegisterHandler(model.EventCardUpdated, s.HandleCardEvent)
	bus.RegisterHandler(model.EventRelationCreated, s.HandleRelationEvent)
	bus.RegisterHandler(model.EventRelationDeleted, s.HandleRelationEvent)
}

// HandleCardEvent recomputes the score of the mutated card.
func (s *Scorer) HandleCardEvent(ctx context.Context, evt *model.Event) error {
	_, _, err := s.Recompute(ctx, evt.EntityID)
	return err
}

// HandleRelationEvent recomputes both endpoints of the relation named in the
// event payload. The two sides are independent: a failure on one does not
// skip the other.
func (s *Scorer) HandleRelationEvent(ctx context.Context, evt *model.Event) error {
	var snap events.RelationSnapshot
	if err := json.Unmarshal(evt.Payload, &snap); err != nil {
		return fmt.Errorf("scoring: relation payload: %w", err)
	}
	if snap.SourceID == "" || snap.TargetID == "" {
		return fmt.Errorf("scoring: relation event %s carries no endpoint ids", evt.ID)
	}

	_, _, srcErr := s.Recompute(ctx, snap.SourceID)
	_, _, tgtErr := s.Recompute(ctx, snap.TargetID)
	return errors.Join(srcErr, tgtErr)
}

// Recompute derives the card's completion score from current state and
// persists it only when it differs from the stored value. It reports the new
// score and whether a write happened. A card that no longer exists is a
// no-op, not an error.
func (s *Scorer) Recompute(ctx context.Context, cardID string) (float64, bool, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.ScoreRecomputations.WithLabelValues("skipped").Inc()
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("scoring: load card %s: %w", cardID, err)
	}

	score, err := s.Score(ctx, card)
	if err != nil {
		return 0, false, err
	}

	if score == card.Completion {
		metrics.ScoreRecomputations.WithLabelValues("unchanged").Inc()
		return score, false, nil
	}

	if err := s.store.UpdateCardCompletion(ctx, cardID, score); err != nil {
		return 0, false, fmt.Errorf("scoring: persist score for %s: %w", cardID, err)
	}
	metrics.ScoreRecomputations.WithLabelValues("changed").Inc()
	s.logger.Debug("completion score updated",
		"card_id", cardID, "old", card.Completion, "new", score)
	return score, true, nil
}

// Score computes the completion score for a card without persisting it.
// A type with no rules, or a rule set with zero checks, scores 100.
func (s *Scorer) Score(ctx context.Context, card *model.Card) (float64, error) {
	rules, ok := s.currentRules().Types[string(card.Type)]
	if !ok {
		return 100, nil
	}
	total := rules.totalChecks()
	if total == 0 {
		return 100, nil
	}

	passed := 0
	for _, check := range rules.Checks {
		if checkPasses(card, check) {
			passed++
		}
	}

	if rules.MinRelations > 0 {
		n, err := s.store.CountRelations(ctx, card.ID)
		if err != nil {
			return 0, fmt.Errorf("scoring: count relations for %s: %w", card.ID, err)
		}
		if n >= rules.MinRelations {
			passed++
		}
	}

	return round1(float64(passed) / float64(total) * 100), nil
}

// checkPasses evaluates one presence check against the card.
func checkPasses(card *model.Card, check string) bool {
	if attr, ok := strings.CutPrefix(check, attributePrefix); ok {
		_, present := card.Attribute(attr)
		return present
	}
	switch check {
	case "name":
		return strings.TrimSpace(card.Name) != ""
	case "description":
		return strings.TrimSpace(card.Description) != ""
	case "lifecycle":
		return card.Lifecycle != ""
	case "owner":
		return strings.TrimSpace(card.Owner) != ""
	default:
		// Unknown direct field never passes; surfaces as a permanently
		// failing check rather than a hidden error.
		return false
	}
}

// round1 rounds to one decimal place.
func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
