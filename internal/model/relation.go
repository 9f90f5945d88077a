package model

import (
	"encoding/json"
	"time"
)

// RelationType categorizes a typed edge between two cards.
type RelationType string

const (
	RelationRelatesTo RelationType = "relates_to"
	RelationDependsOn RelationType = "depends_on"
	RelationUses      RelationType = "uses"
	RelationOwns      RelationType = "owns"
	RelationRealizes  RelationType = "realizes"
	RelationConsumes  RelationType = "consumes"
)

// String returns the string representation of the relation type.
func (t RelationType) String() string {
	return string(t)
}

// IsValid reports whether the relation type is a non-empty string.
// Relation types are extensible like card types.
func (t RelationType) IsValid() bool {
	return t != ""
}

// Relation is a typed, directed edge between two cards.
type Relation struct {
	ID          string          `json:"id"`
	Type        RelationType    `json:"type"`
	SourceID    string          `json:"source_id"`
	TargetID    string          `json:"target_id"`
	Description string          `json:"description,omitempty"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by,omitempty"`
}
