package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/landscapehq/landscape/internal/model"
)

// SubjectPrefix is prepended to the event type to form the NATS subject,
// e.g. "landscape.card.created".
const SubjectPrefix = "landscape."

// Mirror copies published events to an external system, best-effort. The
// in-process bus remains the source of truth for live delivery; the mirror
// exists so out-of-process tooling can tail the same stream.
type Mirror interface {
	Publish(ctx context.Context, evt *model.Event) error
	Close() error
}

// NoopMirror is a Mirror that does nothing (used when NATS is not configured).
type NoopMirror struct{}

func (NoopMirror) Publish(ctx context.Context, evt *model.Event) error { return nil }

func (NoopMirror) Close() error { return nil }

// NATSMirror publishes event records to NATS subjects derived from the
// event type.
type NATSMirror struct {
	conn *nats.Conn
}

// NewNATSMirror connects to the NATS server at url.
func NewNATSMirror(url string) (*NATSMirror, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSMirror{conn: nc}, nil
}

func (m *NATSMirror) Publish(ctx context.Context, evt *model.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return m.conn.Publish(SubjectPrefix+string(evt.Type), data)
}

func (m *NATSMirror) Close() error {
	m.conn.Close()
	return nil
}
