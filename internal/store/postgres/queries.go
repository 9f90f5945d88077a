package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/landscapehq/landscape/internal/model"
	"github.com/landscapehq/landscape/internal/store"
)

// cardColumns is the column list used for SELECT statements on the cards table.
const cardColumns = `id, type, name, description, lifecycle, owner, status,
	attributes, completion, created_at, created_by, updated_at, archived_at, archived_by`

// relationColumns is the column list for SELECT statements on the relations table.
const relationColumns = `id, type, source_id, target_id, description, attributes, created_at, created_by`

// eventColumns is the column list for SELECT statements on the events table.
const eventColumns = `id, type, entity_type, entity_id, actor, payload, changes, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateCard(ctx context.Context, db executor, c *model.Card) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cards (
			id, type, name, description, lifecycle, owner, status,
			attributes, completion, created_at, created_by, updated_at, archived_at, archived_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14
		)`,
		c.ID,
		string(c.Type),
		c.Name,
		c.Description,
		string(c.Lifecycle),
		c.Owner,
		string(c.Status),
		jsonbBytes(c.Attributes),
		c.Completion,
		c.CreatedAt,
		c.CreatedBy,
		c.UpdatedAt,
		nullTimePtr(c.ArchivedAt),
		c.ArchivedBy,
	)
	return err
}

func queryGetCard(ctx context.Context, db executor, id string) (*model.Card, error) {
	row := db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Fetch tags.
	tags, err := queryGetTags(ctx, db, id)
	if err != nil {
		return nil, err
	}
	c.Tags = tags

	// Fetch relations (both directions).
	rels, err := queryGetRelations(ctx, db, id)
	if err != nil {
		return nil, err
	}
	c.Relations = rels

	// Fetch comments.
	comments, err := queryGetComments(ctx, db, id)
	if err != nil {
		return nil, err
	}
	c.Comments = comments

	return c, nil
}

func queryListCards(ctx context.Context, db executor, filter model.CardFilter) ([]*model.Card, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filter.Type) > 0 {
		placeholders := make([]string, len(filter.Type))
		for i, t := range filter.Type {
			placeholders[i] = nextArg()
			args = append(args, string(t))
		}
		whereClauses = append(whereClauses, "type IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filter.Lifecycle) > 0 {
		placeholders := make([]string, len(filter.Lifecycle))
		for i, l := range filter.Lifecycle {
			placeholders[i] = nextArg()
			args = append(args, string(l))
		}
		whereClauses = append(whereClauses, "lifecycle IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.Owner != "" {
		whereClauses = append(whereClauses, "owner = "+nextArg())
		args = append(args, filter.Owner)
	}

	if len(filter.Tags) > 0 {
		for _, tag := range filter.Tags {
			p := nextArg()
			whereClauses = append(whereClauses,
				fmt.Sprintf("EXISTS (SELECT 1 FROM card_tags WHERE card_tags.card_id = cards.id AND card_tags.tag = %s)", p))
			args = append(args, tag)
		}
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(name ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + cardColumns + " FROM cards" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []*model.Card
	var total int
	for rows.Next() {
		c, t, err := scanCardWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan cards: %w", err)
		}
		total = t
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan cards: %w", err)
	}

	return cards, total, nil
}

// parseSortClause converts a filter sort expression into a safe ORDER BY
// clause. Unknown columns fall back to the default ordering.
func parseSortClause(sort string) string {
	const defaultClause = "created_at DESC"

	col := sort
	dir := "ASC"
	if strings.HasPrefix(sort, "-") {
		col = sort[1:]
		dir = "DESC"
	}

	switch col {
	case "name", "type", "status", "completion", "created_at", "updated_at":
		return col + " " + dir
	default:
		return defaultClause
	}
}

func queryUpdateCard(ctx context.Context, db executor, c *model.Card) error {
	err := db.QueryRowContext(ctx, `
		UPDATE cards SET
			type = $2,
			name = $3,
			description = $4,
			lifecycle = $5,
			owner = $6,
			status = $7,
			attributes = $8,
			updated_at = NOW(),
			archived_at = $9,
			archived_by = $10
		WHERE id = $1
		RETURNING updated_at`,
		c.ID,
		string(c.Type),
		c.Name,
		c.Description,
		string(c.Lifecycle),
		c.Owner,
		string(c.Status),
		jsonbBytes(c.Attributes),
		nullTimePtr(c.ArchivedAt),
		c.ArchivedBy,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func queryArchiveCard(ctx context.Context, db executor, id string, archivedBy string) (*model.Card, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE cards
		SET status = 'archived', archived_at = NOW(), archived_by = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+cardColumns,
		id, archivedBy,
	)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func queryDeleteCard(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// queryUpdateCardCompletion writes only the completion column. It leaves
// updated_at alone: a derived-score write is not a user edit.
func queryUpdateCardCompletion(ctx context.Context, db executor, id string, completion float64) error {
	res, err := db.ExecContext(ctx, `UPDATE cards SET completion = $2 WHERE id = $1`, id, completion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryCreateRelation(ctx context.Context, db executor, r *model.Relation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO relations (id, type, source_id, target_id, description, attributes, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID,
		string(r.Type),
		r.SourceID,
		r.TargetID,
		r.Description,
		jsonbBytes(r.Attributes),
		r.CreatedAt,
		r.CreatedBy,
	)
	return err
}

func queryGetRelation(ctx context.Context, db executor, id string) (*model.Relation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM relations WHERE id = $1`, id)
	r, err := scanRelation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func queryDeleteRelation(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM relations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryGetRelations(ctx context.Context, db executor, cardID string) ([]*model.Relation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+relationColumns+`
		FROM relations
		WHERE source_id = $1 OR target_id = $1
		ORDER BY created_at ASC`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("get relations: %w", err)
	}
	defer rows.Close()

	var rels []*model.Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func queryCountRelations(ctx context.Context, db executor, cardID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relations WHERE source_id = $1 OR target_id = $1`,
		cardID,
	).Scan(&n)
	return n, err
}

func queryAssignTag(ctx context.Context, db executor, cardID string, tag string) (assigned bool, created bool, err error) {
	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM card_tags WHERE tag = $1)`, tag,
	).Scan(&exists)
	if err != nil {
		return false, false, err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO card_tags (card_id, tag)
		VALUES ($1, $2)
		ON CONFLICT (card_id, tag) DO NOTHING`,
		cardID, tag,
	)
	if err != nil {
		return false, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, false, err
	}

	assigned = n > 0
	return assigned, assigned && !exists, nil
}

func queryRemoveTag(ctx context.Context, db executor, cardID string, tag string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM card_tags WHERE card_id = $1 AND tag = $2`, cardID, tag)
	return err
}

func queryGetTags(ctx context.Context, db executor, cardID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tag FROM card_tags WHERE card_id = $1 ORDER BY tag ASC`, cardID)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func queryAddComment(ctx context.Context, db executor, c *model.Comment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO comments (id, card_id, author, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.CardID, c.Author, c.Body, c.CreatedAt,
	)
	return err
}

func queryGetComments(ctx context.Context, db executor, cardID string) ([]*model.Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, card_id, author, body, created_at
		FROM comments
		WHERE card_id = $1
		ORDER BY created_at ASC`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		var c model.Comment
		var author sql.NullString
		if err := rows.Scan(&c.ID, &c.CardID, &author, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.Author = author.String
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (id, type, entity_type, entity_id, actor, payload, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID,
		string(e.Type),
		e.EntityType,
		e.EntityID,
		e.Actor,
		jsonbBytes(e.Payload),
		jsonbBytes(e.Changes),
		e.CreatedAt,
	)
	return err
}

func queryListEvents(ctx context.Context, db executor, filter model.EventFilter) ([]*model.Event, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.EntityType != "" {
		whereClauses = append(whereClauses, "entity_type = "+nextArg())
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		whereClauses = append(whereClauses, "entity_id = "+nextArg())
		args = append(args, filter.EntityID)
	}
	if filter.Type != "" {
		whereClauses = append(whereClauses, "type = "+nextArg())
		args = append(args, string(filter.Type))
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + eventColumns +
		" FROM events" + whereSQL + " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	var total int
	for rows.Next() {
		e, t, err := scanEventWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan events: %w", err)
		}
		total = t
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan events: %w", err)
	}

	return events, total, nil
}
