package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/landscapehq/landscape/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanCard scans a single row into a model.Card.
// The row must contain columns in the order defined by cardColumns.
func scanCard(row scannable) (*model.Card, error) {
	var c model.Card
	var (
		description sql.NullString
		lifecycle   sql.NullString
		owner       sql.NullString
		createdBy   sql.NullString
		archivedAt  sql.NullTime
		archivedBy  sql.NullString
		attributes  []byte
	)

	err := row.Scan(
		&c.ID,
		&c.Type,
		&c.Name,
		&description,
		&lifecycle,
		&owner,
		&c.Status,
		&attributes,
		&c.Completion,
		&c.CreatedAt,
		&createdBy,
		&c.UpdatedAt,
		&archivedAt,
		&archivedBy,
	)
	if err != nil {
		return nil, err
	}

	c.Description = description.String
	c.Lifecycle = model.Lifecycle(lifecycle.String)
	c.Owner = owner.String
	c.CreatedBy = createdBy.String
	c.ArchivedBy = archivedBy.String

	if archivedAt.Valid {
		t := archivedAt.Time
		c.ArchivedAt = &t
	}
	if len(attributes) > 0 {
		c.Attributes = json.RawMessage(attributes)
	}

	return &c, nil
}

// scanCardWithTotal scans a row of (total_count, cardColumns...) as produced
// by queryListCards.
func scanCardWithTotal(row scannable) (*model.Card, int, error) {
	var c model.Card
	var total int
	var (
		description sql.NullString
		lifecycle   sql.NullString
		owner       sql.NullString
		createdBy   sql.NullString
		archivedAt  sql.NullTime
		archivedBy  sql.NullString
		attributes  []byte
	)

	err := row.Scan(
		&total,
		&c.ID,
		&c.Type,
		&c.Name,
		&description,
		&lifecycle,
		&owner,
		&c.Status,
		&attributes,
		&c.Completion,
		&c.CreatedAt,
		&createdBy,
		&c.UpdatedAt,
		&archivedAt,
		&archivedBy,
	)
	if err != nil {
		return nil, 0, err
	}

	c.Description = description.String
	c.Lifecycle = model.Lifecycle(lifecycle.String)
	c.Owner = owner.String
	c.CreatedBy = createdBy.String
	c.ArchivedBy = archivedBy.String

	if archivedAt.Valid {
		t := archivedAt.Time
		c.ArchivedAt = &t
	}
	if len(attributes) > 0 {
		c.Attributes = json.RawMessage(attributes)
	}

	return &c, total, nil
}

// scanRelation scans a single row into a model.Relation.
// The row must contain columns in the order defined by relationColumns.
func scanRelation(row scannable) (*model.Relation, error) {
	var r model.Relation
	var (
		description sql.NullString
		createdBy   sql.NullString
		attributes  []byte
	)

	err := row.Scan(
		&r.ID,
		&r.Type,
		&r.SourceID,
		&r.TargetID,
		&description,
		&attributes,
		&r.CreatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	r.Description = description.String
	r.CreatedBy = createdBy.String
	if len(attributes) > 0 {
		r.Attributes = json.RawMessage(attributes)
	}

	return &r, nil
}

// scanEventWithTotal scans a row of (total_count, eventColumns...) as
// produced by queryListEvents.
func scanEventWithTotal(row scannable) (*model.Event, int, error) {
	var e model.Event
	var total int
	var (
		actor   sql.NullString
		payload []byte
		changes []byte
	)

	err := row.Scan(
		&total,
		&e.ID,
		&e.Type,
		&e.EntityType,
		&e.EntityID,
		&actor,
		&payload,
		&changes,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, 0, err
	}

	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	if len(changes) > 0 {
		e.Changes = json.RawMessage(changes)
	}

	return &e, total, nil
}

// nullTimePtr converts a *time.Time into a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// jsonbBytes converts a json.RawMessage into the []byte driver value for a
// jsonb column, mapping empty to NULL.
func jsonbBytes(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
