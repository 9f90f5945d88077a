// Package events implements the in-process event bus: publish fans a single
// immutable event record out to live stream subscriptions (non-blocking,
// lossy under pressure) and dispatches it to registered side-effect handlers.
//
// The bus gives no cross-process delivery guarantee; the durable history
// lives in the event log, which callers write separately. Handler-observed
// state is eventually consistent within the process: a handler sees the
// store as of when it runs, which may already include newer mutations.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/landscapehq/landscape/internal/idgen"
	"github.com/landscapehq/landscape/internal/metrics"
	"github.com/landscapehq/landscape/internal/model"
)

const (
	// inboxSize is the capacity of each subscription's inbox. A subscription
	// whose inbox is full when an event is offered is evicted.
	inboxSize = 256

	// DefaultMaxSubscribers caps concurrent subscriptions as an operational
	// safeguard. Zero passed to NewBus selects this default.
	DefaultMaxSubscribers = 1024

	// maxPayloadBytes bounds the payload snapshot carried by a single event.
	maxPayloadBytes = 64 << 10
)

var (
	// ErrInvalidEvent is returned when a publish call is missing required
	// identifiers. This is the only error publish surfaces to callers; it
	// indicates a programming error in the calling collaborator.
	ErrInvalidEvent = errors.New("events: invalid event")

	// ErrTooManySubscribers is returned by Subscribe once the configured
	// subscription cap is reached.
	ErrTooManySubscribers = errors.New("events: subscriber capacity exceeded")
)

// Handler is an internal side-effect function invoked during dispatch.
// Handlers for the same event type run in registration order; a handler
// error or panic is logged and never aborts the publish.
type Handler func(ctx context.Context, evt *model.Event) error

// Recorder persists an event record to the durable log. The bus invokes it
// after building the record and before any fan-out or handler dispatch, so
// the log row exists by the time a handler observes the event.
type Recorder func(ctx context.Context, evt *model.Event) error

// Subscription is one live stream consumer's registration plus its bounded
// inbox. Receive from C until it is closed; a closed inbox means the
// subscription was unsubscribed or evicted.
type Subscription struct {
	ID string
	C  <-chan *model.Event

	types map[model.EventType]struct{} // nil = all types
	ch    chan *model.Event
	once  sync.Once
}

func (s *Subscription) wants(t model.EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// close shuts the inbox exactly once, regardless of how many of the
// unsubscribe/evict paths race to it.
func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.ch)
		metrics.LiveSubscribers.Dec()
	})
}

// SubscriptionInfo is a point-in-time view of one live subscription,
// exposed for the operator roster endpoint.
type SubscriptionInfo struct {
	ID      string   `json:"id"`
	Types   []string `json:"types,omitempty"`
	Pending int      `json:"pending"`
}

// PublishInput holds the parameters for one publish call. Type, EntityType,
// and EntityID are required.
type PublishInput struct {
	Type       model.EventType
	EntityType string
	EntityID   string
	Actor      string
	Payload    json.RawMessage
	Changes    json.RawMessage
}

// Bus is the process-wide event coordinator. Construct one at startup with
// NewBus and hand it to every collaborator that publishes or subscribes.
type Bus struct {
	logger  *slog.Logger
	maxSubs int

	mu       sync.RWMutex
	subs     map[string]*Subscription
	handlers map[model.EventType][]Handler
	recorder Recorder

	lastStamp atomic.Int64 // unix nanos of the newest issued timestamp
}

// NewBus creates an event bus. maxSubscribers <= 0 selects
// DefaultMaxSubscribers.
func NewBus(logger *slog.Logger, maxSubscribers int) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSubscribers <= 0 {
		maxSubscribers = DefaultMaxSubscribers
	}
	return &Bus{
		logger:   logger,
		maxSubs:  maxSubscribers,
		subs:     make(map[string]*Subscription),
		handlers: make(map[model.EventType][]Handler),
	}
}

// RegisterHandler appends a handler for the given event type. Registration
// happens once at process startup, before any publish for that type; there
// is no unregistration.
func (b *Bus) RegisterHandler(t model.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SetRecorder installs the event-log writer. Like RegisterHandler it is
// called once at startup, before any publish. A recorder error is logged and
// the publish continues; the live stream stays best-effort even when the
// log write fails.
func (b *Bus) SetRecorder(r Recorder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recorder = r
}

// Publish constructs an immutable event record, writes it to the event log
// via the recorder, offers it to every live subscription without blocking,
// then invokes the handlers registered for the event type in order. It
// returns the record. The only error returned is ErrInvalidEvent (wrapped)
// for malformed input; recording, delivery, and handler failures are logged,
// never surfaced.
func (b *Bus) Publish(ctx context.Context, in PublishInput) (*model.Event, error) {
	if !in.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, in.Type)
	}
	if in.EntityType == "" {
		return nil, fmt.Errorf("%w: entity_type is required", ErrInvalidEvent)
	}
	if in.EntityID == "" {
		return nil, fmt.Errorf("%w: entity_id is required", ErrInvalidEvent)
	}

	id, err := idgen.Generate(idgen.PrefixEvent)
	if err != nil {
		return nil, fmt.Errorf("events: generate id: %w", err)
	}

	payload := in.Payload
	if len(payload) > maxPayloadBytes {
		clipped, _ := json.Marshal(map[string]any{"truncated": true, "bytes": len(payload)})
		payload = clipped
	}

	evt := &model.Event{
		ID:         id,
		Type:       in.Type,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		Actor:      in.Actor,
		Payload:    payload,
		Changes:    in.Changes,
		CreatedAt:  b.timestamp(),
	}

	metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	b.mu.RLock()
	rec := b.recorder
	b.mu.RUnlock()
	if rec != nil {
		if err := rec(ctx, evt); err != nil {
			b.logger.Warn("failed to record event",
				"event_type", evt.Type,
				"entity_id", evt.EntityID,
				"err", err)
		}
	}

	b.fanOut(evt)
	b.dispatch(ctx, evt)

	return evt, nil
}

// Subscribe registers a new live subscription. An empty type list receives
// every event; otherwise only the listed types are offered to the inbox.
func (b *Bus) Subscribe(types ...model.EventType) (*Subscription, error) {
	sub := &Subscription{
		ID: uuid.NewString(),
		ch: make(chan *model.Event, inboxSize),
	}
	sub.C = sub.ch
	if len(types) > 0 {
		sub.types = make(map[model.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) >= b.maxSubs {
		return nil, ErrTooManySubscribers
	}
	b.subs[sub.ID] = sub
	metrics.LiveSubscribers.Inc()
	return sub, nil
}

// Unsubscribe removes a subscription and closes its inbox. It is idempotent:
// unknown ids, repeated calls, and calls after eviction are no-ops.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Roster returns a point-in-time view of all live subscriptions.
func (b *Bus) Roster() []SubscriptionInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	infos := make([]SubscriptionInfo, 0, len(b.subs))
	for _, sub := range b.subs {
		info := SubscriptionInfo{ID: sub.ID, Pending: len(sub.ch)}
		for t := range sub.types {
			info.Types = append(info.Types, string(t))
		}
		infos = append(infos, info)
	}
	return infos
}

// fanOut offers the event to every matching inbox without blocking. Any
// subscription whose inbox is full is evicted: it loses this and all future
// events, but the publisher and the other subscriptions are unaffected.
func (b *Bus) fanOut(evt *model.Event) {
	var evicted []*Subscription

	b.mu.RLock()
	for _, sub := range b.subs {
		if !sub.wants(evt.Type) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			evicted = append(evicted, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range evicted {
		b.evict(sub, evt)
	}
}

func (b *Bus) evict(sub *Subscription, evt *model.Event) {
	b.mu.Lock()
	_, live := b.subs[sub.ID]
	if live {
		delete(b.subs, sub.ID)
	}
	b.mu.Unlock()

	sub.close()
	if live {
		metrics.EventsDropped.Inc()
		metrics.SubscriptionsEvicted.Inc()
		b.logger.Warn("evicting slow subscriber",
			"subscription_id", sub.ID,
			"event_type", evt.Type,
			"inbox_size", inboxSize)
	}
}

// dispatch invokes the handlers registered for the event type, in
// registration order. The handler slice is copied out under the read lock so
// no lock is held while a handler runs.
func (b *Bus) dispatch(ctx context.Context, evt *model.Event) {
	b.mu.RLock()
	registered := b.handlers[evt.Type]
	hs := make([]Handler, len(registered))
	copy(hs, registered)
	b.mu.RUnlock()

	for _, h := range hs {
		b.invoke(ctx, h, evt)
	}
}

func (b *Bus) invoke(ctx context.Context, h Handler, evt *model.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerFailures.WithLabelValues(string(evt.Type)).Inc()
			b.logger.Error("event handler panicked",
				"event_type", evt.Type,
				"entity_id", evt.EntityID,
				"panic", r)
		}
	}()

	start := time.Now()
	err := h(ctx, evt)
	metrics.HandlerDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HandlerFailures.WithLabelValues(string(evt.Type)).Inc()
		b.logger.Warn("event handler failed",
			"event_type", evt.Type,
			"entity_id", evt.EntityID,
			"err", err)
	}
}

// timestamp returns the current UTC time, nudged forward when needed so
// timestamps are monotonically non-decreasing across concurrent publishes.
func (b *Bus) timestamp() time.Time {
	for {
		now := time.Now().UnixNano()
		last := b.lastStamp.Load()
		if now <= last {
			now = last + 1
		}
		if b.lastStamp.CompareAndSwap(last, now) {
			return time.Unix(0, now).UTC()
		}
	}
}
