package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventType_IsValid(t *testing.T) {
	for _, et := range EventTypes() {
		if !et.IsValid() {
			t.Errorf("EventType %q should be valid", et)
		}
	}
	for _, bad := range []EventType{"", "card.renamed", "relation", "CARD.CREATED"} {
		if bad.IsValid() {
			t.Errorf("EventType %q should be invalid", bad)
		}
	}
}

func TestEvent_JSONShape(t *testing.T) {
	evt := &Event{
		ID:         "evt-abc1234567",
		Type:       EventCardUpdated,
		EntityType: "application",
		EntityID:   "fs-xyz",
		Actor:      "alice",
		Payload:    json.RawMessage(`{"name":"Payments"}`),
		Changes:    json.RawMessage(`{"name":{"old":"Pay","new":"Payments"}}`),
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["id"] != "evt-abc1234567" {
		t.Errorf("id = %v, want string id", got["id"])
	}
	if got["type"] != "card.updated" {
		t.Errorf("type = %v, want card.updated", got["type"])
	}
	// Timestamps must serialize as ISO-8601 / RFC 3339.
	if got["created_at"] != "2025-06-01T12:00:00Z" {
		t.Errorf("created_at = %v, want RFC 3339 string", got["created_at"])
	}
}

func TestCard_Attribute(t *testing.T) {
	c := &Card{Attributes: json.RawMessage(`{"business_criticality":"high","users":250,"hosted":true,"empty":"","nested":{"x":1}}`)}

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"business_criticality", "high", true},
		{"users", "250", true},
		{"hosted", "true", true},
		{"empty", "", false},
		{"nested", "", false},
		{"missing", "", false},
	}
	for _, tc := range tests {
		got, ok := c.Attribute(tc.name)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("Attribute(%q) = (%q, %v), want (%q, %v)", tc.name, got, ok, tc.want, tc.wantOK)
		}
	}

	var none Card
	if _, ok := none.Attribute("anything"); ok {
		t.Error("Attribute on empty attributes should report ok=false")
	}
}
