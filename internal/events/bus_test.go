package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/landscapehq/landscape/internal/model"
)

func newTestBus() *Bus {
	return NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
}

func publishCard(t *testing.T, b *Bus, id string) *model.Event {
	t.Helper()
	evt, err := b.Publish(context.Background(), PublishInput{
		Type:       model.EventCardUpdated,
		EntityType: string(model.TypeApplication),
		EntityID:   id,
	})
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	return evt
}

func TestPublish_RejectsMalformedInput(t *testing.T) {
	b := newTestBus()

	tests := []struct {
		name string
		in   PublishInput
	}{
		{"UnknownType", PublishInput{Type: "card.renamed", EntityType: "application", EntityID: "fs-1"}},
		{"EmptyType", PublishInput{EntityType: "application", EntityID: "fs-1"}},
		{"MissingEntityType", PublishInput{Type: model.EventCardCreated, EntityID: "fs-1"}},
		{"MissingEntityID", PublishInput{Type: model.EventCardCreated, EntityType: "application"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Publish(context.Background(), tc.in)
			if !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("Publish() error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestPublish_BuildsRecord(t *testing.T) {
	b := newTestBus()

	evt, err := b.Publish(context.Background(), PublishInput{
		Type:       model.EventCardCreated,
		EntityType: "application",
		EntityID:   "fs-1",
		Actor:      "alice",
		Payload:    json.RawMessage(`{"name":"Payments"}`),
	})
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if evt.ID == "" {
		t.Error("expected a generated event id")
	}
	if evt.Type != model.EventCardCreated || evt.EntityID != "fs-1" || evt.Actor != "alice" {
		t.Errorf("unexpected record: %+v", evt)
	}
	if evt.CreatedAt.IsZero() {
		t.Error("expected a server-assigned timestamp")
	}
}

func TestPublish_MonotonicTimestamps(t *testing.T) {
	b := newTestBus()

	var prev time.Time
	for i := 0; i < 1000; i++ {
		evt := publishCard(t, b, "fs-1")
		if evt.CreatedAt.Before(prev) {
			t.Fatalf("timestamp went backwards: %v < %v", evt.CreatedAt, prev)
		}
		prev = evt.CreatedAt
	}
}

func TestPublish_TruncatesOversizedPayload(t *testing.T) {
	b := newTestBus()

	big, _ := json.Marshal(map[string]string{"blob": string(make([]byte, maxPayloadBytes))})
	evt, err := b.Publish(context.Background(), PublishInput{
		Type:       model.EventCardUpdated,
		EntityType: "application",
		EntityID:   "fs-1",
		Payload:    big,
	})
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if len(evt.Payload) > maxPayloadBytes {
		t.Fatalf("payload not truncated: %d bytes", len(evt.Payload))
	}
	var marker struct {
		Truncated bool `json:"truncated"`
	}
	if err := json.Unmarshal(evt.Payload, &marker); err != nil || !marker.Truncated {
		t.Fatalf("expected truncation marker, got %s", evt.Payload)
	}
}

func TestSubscriber_ReceivesInPublishOrder(t *testing.T) {
	b := newTestBus()

	sub, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer b.Unsubscribe(sub.ID)

	const n = 100
	want := make([]string, 0, n)
	for i := 0; i < n; i++ {
		evt := publishCard(t, b, fmt.Sprintf("fs-%d", i))
		want = append(want, evt.ID)
	}

	for i := 0; i < n; i++ {
		select {
		case evt := <-sub.C:
			if evt.ID != want[i] {
				t.Fatalf("event %d: got id %s, want %s", i, evt.ID, want[i])
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestSubscriber_TypeFilter(t *testing.T) {
	b := newTestBus()

	sub, err := b.Subscribe(model.EventRelationCreated)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer b.Unsubscribe(sub.ID)

	publishCard(t, b, "fs-1") // card.updated, filtered out
	if _, err := b.Publish(context.Background(), PublishInput{
		Type:       model.EventRelationCreated,
		EntityType: EntityRelation,
		EntityID:   "rel-1",
	}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	select {
	case evt := <-sub.C:
		if evt.Type != model.EventRelationCreated {
			t.Fatalf("got type %s, want relation.created", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected extra event: %s", evt.Type)
	default:
	}
}

func TestEviction_OnInboxOverflow(t *testing.T) {
	b := newTestBus()

	slow, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	healthy, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	// Fill the slow inbox exactly, draining the healthy one as we go.
	for i := 0; i < inboxSize; i++ {
		publishCard(t, b, "fs-1")
		<-healthy.C
	}
	if got := b.SubscriberCount(); got != 2 {
		t.Fatalf("SubscriberCount() = %d before overflow, want 2", got)
	}

	// The overflowing publish evicts the slow subscription only.
	publishCard(t, b, "fs-1")
	<-healthy.C

	if got := b.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount() = %d after overflow, want 1", got)
	}

	// The evicted inbox still drains its buffered events, then closes.
	received := 0
	for range slow.C {
		received++
	}
	if received != inboxSize {
		t.Fatalf("evicted subscriber drained %d events, want %d", received, inboxSize)
	}

	// The healthy subscription keeps receiving.
	publishCard(t, b, "fs-2")
	select {
	case evt := <-healthy.C:
		if evt.EntityID != "fs-2" {
			t.Fatalf("got entity %s, want fs-2", evt.EntityID)
		}
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber stopped receiving after another was evicted")
	}
	b.Unsubscribe(healthy.ID)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := newTestBus()

	sub, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	b.Unsubscribe(sub.ID)
	b.Unsubscribe(sub.ID) // second call is a no-op
	b.Unsubscribe("not-a-subscription")

	if _, ok := <-sub.C; ok {
		t.Fatal("expected inbox to be closed after unsubscribe")
	}
	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", got)
	}
}

func TestSubscribe_CapacityExceeded(t *testing.T) {
	b := NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)), 2)

	for i := 0; i < 2; i++ {
		if _, err := b.Subscribe(); err != nil {
			t.Fatalf("Subscribe %d error: %v", i, err)
		}
	}
	if _, err := b.Subscribe(); !errors.Is(err, ErrTooManySubscribers) {
		t.Fatalf("Subscribe() error = %v, want ErrTooManySubscribers", err)
	}
}

func TestHandlers_RunInRegistrationOrder(t *testing.T) {
	b := newTestBus()

	var order []string
	b.RegisterHandler(model.EventCardUpdated, func(ctx context.Context, evt *model.Event) error {
		order = append(order, "first")
		return nil
	})
	b.RegisterHandler(model.EventCardUpdated, func(ctx context.Context, evt *model.Event) error {
		order = append(order, "second")
		return nil
	})

	publishCard(t, b, "fs-1")

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("handler order = %v, want [first second]", order)
	}
}

func TestHandlers_InvokedOncePerEvent(t *testing.T) {
	b := newTestBus()

	calls := 0
	b.RegisterHandler(model.EventCardUpdated, func(ctx context.Context, evt *model.Event) error {
		calls++
		return nil
	})
	b.RegisterHandler(model.EventCardCreated, func(ctx context.Context, evt *model.Event) error {
		t.Error("handler for a different type must not run")
		return nil
	})

	publishCard(t, b, "fs-1")
	publishCard(t, b, "fs-1")

	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
}

func TestHandlers_FailureIsolation(t *testing.T) {
	b := newTestBus()

	sub, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer b.Unsubscribe(sub.ID)

	ran := false
	b.RegisterHandler(model.EventCardUpdated, func(ctx context.Context, evt *model.Event) error {
		return errors.New("boom")
	})
	b.RegisterHandler(model.EventCardUpdated, func(ctx context.Context, evt *model.Event) error {
		panic("much worse")
	})
	b.RegisterHandler(model.EventCardUpdated, func(ctx context.Context, evt *model.Event) error {
		ran = true
		return nil
	})

	evt := publishCard(t, b, "fs-1")

	if !ran {
		t.Fatal("handler after a failing one did not run")
	}
	select {
	case got := <-sub.C:
		if got.ID != evt.ID {
			t.Fatalf("subscriber got %s, want %s", got.ID, evt.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("handler failure must not block subscriber delivery")
	}
}

func TestPublish_ConcurrentSafety(t *testing.T) {
	b := newTestBus()

	sub, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sub.C {
		}
	}()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, err := b.Publish(context.Background(), PublishInput{
					Type:       model.EventCardUpdated,
					EntityType: "application",
					EntityID:   fmt.Sprintf("fs-%d-%d", g, i),
				})
				if err != nil {
					t.Errorf("Publish error: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	b.Unsubscribe(sub.ID)
	<-done
}

func TestRecorder_RunsBeforeHandlers(t *testing.T) {
	b := newTestBus()

	var order []string
	b.SetRecorder(func(_ context.Context, evt *model.Event) error {
		if evt.ID == "" || evt.CreatedAt.IsZero() {
			t.Error("recorder saw an incomplete record")
		}
		order = append(order, "record")
		return nil
	})
	b.RegisterHandler(model.EventCardUpdated, func(context.Context, *model.Event) error {
		order = append(order, "handle")
		return nil
	})

	publishCard(t, b, "fs-1")

	if len(order) != 2 || order[0] != "record" || order[1] != "handle" {
		t.Fatalf("order = %v, want [record handle]", order)
	}
}

func TestRecorder_FailureDoesNotBlockDelivery(t *testing.T) {
	b := newTestBus()
	b.SetRecorder(func(context.Context, *model.Event) error {
		return errors.New("disk on fire")
	})

	sub, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer b.Unsubscribe(sub.ID)

	published := publishCard(t, b, "fs-1")

	select {
	case got := <-sub.C:
		if got.ID != published.ID {
			t.Errorf("received %s, want %s", got.ID, published.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered after recorder failure")
	}
}
