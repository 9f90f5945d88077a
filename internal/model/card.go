package model

import (
	"encoding/json"
	"time"
)

// CardType categorizes a fact sheet in the architecture catalog.
// Well-known constants are provided below, but card types are extensible;
// custom types defined by an organization (e.g. "platform", "vendor") are valid.
type CardType string

const (
	TypeApplication        CardType = "application"
	TypeBusinessCapability CardType = "business_capability"
	TypeITComponent        CardType = "it_component"
	TypeDataObject         CardType = "data_object"
	TypeProcess            CardType = "process"
	TypeProvider           CardType = "provider"
	TypeUserGroup          CardType = "user_group"
	TypeProject            CardType = "project"
)

// String returns the string representation of the card type.
func (t CardType) String() string {
	return string(t)
}

// IsValid reports whether the card type is a non-empty string.
// Card types are extensible, so any non-empty value is accepted.
func (t CardType) IsValid() bool {
	return t != ""
}

// Status represents the lifecycle state of a card record itself
// (distinct from the Lifecycle attribute of the modeled asset).
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusArchived:
		return true
	}
	return false
}

// Lifecycle phases of the modeled asset (e.g. an application's plan-to-sunset
// journey). Optional on a card; an empty value means "not yet filled in".
type Lifecycle string

const (
	LifecyclePlan      Lifecycle = "plan"
	LifecyclePhaseIn   Lifecycle = "phase_in"
	LifecycleActive    Lifecycle = "active"
	LifecyclePhaseOut  Lifecycle = "phase_out"
	LifecycleEndOfLife Lifecycle = "end_of_life"
)

// IsValid checks whether the lifecycle is a known value. Empty is allowed.
func (l Lifecycle) IsValid() bool {
	switch l {
	case "", LifecyclePlan, LifecyclePhaseIn, LifecycleActive, LifecyclePhaseOut, LifecycleEndOfLife:
		return true
	}
	return false
}

// Card is a fact sheet: one typed entity in the architecture catalog.
type Card struct {
	ID          string          `json:"id"`
	Type        CardType        `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Lifecycle   Lifecycle       `json:"lifecycle,omitempty"`
	Owner       string          `json:"owner,omitempty"`
	Status      Status          `json:"status"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	Completion  float64         `json:"completion"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ArchivedAt  *time.Time      `json:"archived_at,omitempty"`
	ArchivedBy  string          `json:"archived_by,omitempty"`

	// Relational data -- populated by queries, not stored in the cards table.
	Tags      []string    `json:"tags,omitempty"`
	Relations []*Relation `json:"relations,omitempty"`
	Comments  []*Comment  `json:"comments,omitempty"`
}

// Attribute returns the named nested attribute as a string, with ok=false
// when the attribute is absent, null, or not a scalar.
func (c *Card) Attribute(name string) (string, bool) {
	if len(c.Attributes) == 0 {
		return "", false
	}
	var attrs map[string]any
	if err := json.Unmarshal(c.Attributes, &attrs); err != nil {
		return "", false
	}
	v, ok := attrs[name]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		b, _ := json.Marshal(t)
		return string(b), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}
