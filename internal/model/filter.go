package model

// CardFilter holds criteria for querying cards.
type CardFilter struct {
	Status    []Status    `json:"status,omitempty"`
	Type      []CardType  `json:"type,omitempty"`
	Lifecycle []Lifecycle `json:"lifecycle,omitempty"`
	Owner     string      `json:"owner,omitempty"`
	Tags      []string    `json:"tags,omitempty"`
	Search    string      `json:"search,omitempty"` // substring search on name/description
	Sort      string      `json:"sort,omitempty"`   // e.g. "-updated_at", "name"; prefix "-" = descending
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
}

// EventFilter holds criteria for querying the event log. Results are always
// newest first.
type EventFilter struct {
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Type       EventType `json:"type,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Offset     int       `json:"offset,omitempty"`
}
