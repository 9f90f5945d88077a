// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/landscapehq/landscape/internal/model"
	"github.com/landscapehq/landscape/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateCard(ctx context.Context, card *model.Card) error {
	return queryCreateCard(ctx, s.db, card)
}

func (s *PostgresStore) GetCard(ctx context.Context, id string) (*model.Card, error) {
	return queryGetCard(ctx, s.db, id)
}

func (s *PostgresStore) ListCards(ctx context.Context, filter model.CardFilter) ([]*model.Card, int, error) {
	return queryListCards(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateCard(ctx context.Context, card *model.Card) error {
	return queryUpdateCard(ctx, s.db, card)
}

func (s *PostgresStore) ArchiveCard(ctx context.Context, id string, archivedBy string) (*model.Card, error) {
	return queryArchiveCard(ctx, s.db, id, archivedBy)
}

func (s *PostgresStore) DeleteCard(ctx context.Context, id string) error {
	return queryDeleteCard(ctx, s.db, id)
}

func (s *PostgresStore) UpdateCardCompletion(ctx context.Context, id string, completion float64) error {
	return queryUpdateCardCompletion(ctx, s.db, id, completion)
}

func (s *PostgresStore) CreateRelation(ctx context.Context, rel *model.Relation) error {
	return queryCreateRelation(ctx, s.db, rel)
}

func (s *PostgresStore) GetRelation(ctx context.Context, id string) (*model.Relation, error) {
	return queryGetRelation(ctx, s.db, id)
}

func (s *PostgresStore) DeleteRelation(ctx context.Context, id string) error {
	return queryDeleteRelation(ctx, s.db, id)
}

func (s *PostgresStore) GetRelations(ctx context.Context, cardID string) ([]*model.Relation, error) {
	return queryGetRelations(ctx, s.db, cardID)
}

func (s *PostgresStore) CountRelations(ctx context.Context, cardID string) (int, error) {
	return queryCountRelations(ctx, s.db, cardID)
}

func (s *PostgresStore) AssignTag(ctx context.Context, cardID string, tag string) (bool, bool, error) {
	return queryAssignTag(ctx, s.db, cardID, tag)
}

func (s *PostgresStore) RemoveTag(ctx context.Context, cardID string, tag string) error {
	return queryRemoveTag(ctx, s.db, cardID, tag)
}

func (s *PostgresStore) GetTags(ctx context.Context, cardID string) ([]string, error) {
	return queryGetTags(ctx, s.db, cardID)
}

func (s *PostgresStore) AddComment(ctx context.Context, comment *model.Comment) error {
	return queryAddComment(ctx, s.db, comment)
}

func (s *PostgresStore) GetComments(ctx context.Context, cardID string) ([]*model.Comment, error) {
	return queryGetComments(ctx, s.db, cardID)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, int, error) {
	return queryListEvents(ctx, s.db, filter)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateCard(ctx context.Context, card *model.Card) error {
	return queryCreateCard(ctx, s.tx, card)
}

func (s *txStore) GetCard(ctx context.Context, id string) (*model.Card, error) {
	return queryGetCard(ctx, s.tx, id)
}

func (s *txStore) ListCards(ctx context.Context, filter model.CardFilter) ([]*model.Card, int, error) {
	return queryListCards(ctx, s.tx, filter)
}

func (s *txStore) UpdateCard(ctx context.Context, card *model.Card) error {
	return queryUpdateCard(ctx, s.tx, card)
}

func (s *txStore) ArchiveCard(ctx context.Context, id string, archivedBy string) (*model.Card, error) {
	return queryArchiveCard(ctx, s.tx, id, archivedBy)
}

func (s *txStore) DeleteCard(ctx context.Context, id string) error {
	return queryDeleteCard(ctx, s.tx, id)
}

func (s *txStore) UpdateCardCompletion(ctx context.Context, id string, completion float64) error {
	return queryUpdateCardCompletion(ctx, s.tx, id, completion)
}

func (s *txStore) CreateRelation(ctx context.Context, rel *model.Relation) error {
	return queryCreateRelation(ctx, s.tx, rel)
}

func (s *txStore) GetRelation(ctx context.Context, id string) (*model.Relation, error) {
	return queryGetRelation(ctx, s.tx, id)
}

func (s *txStore) DeleteRelation(ctx context.Context, id string) error {
	return queryDeleteRelation(ctx, s.tx, id)
}

func (s *txStore) GetRelations(ctx context.Context, cardID string) ([]*model.Relation, error) {
	return queryGetRelations(ctx, s.tx, cardID)
}

func (s *txStore) CountRelations(ctx context.Context, cardID string) (int, error) {
	return queryCountRelations(ctx, s.tx, cardID)
}

func (s *txStore) AssignTag(ctx context.Context, cardID string, tag string) (bool, bool, error) {
	return queryAssignTag(ctx, s.tx, cardID, tag)
}

func (s *txStore) RemoveTag(ctx context.Context, cardID string, tag string) error {
	return queryRemoveTag(ctx, s.tx, cardID, tag)
}

func (s *txStore) GetTags(ctx context.Context, cardID string) ([]string, error) {
	return queryGetTags(ctx, s.tx, cardID)
}

func (s *txStore) AddComment(ctx context.Context, comment *model.Comment) error {
	return queryAddComment(ctx, s.tx, comment)
}

func (s *txStore) GetComments(ctx context.Context, cardID string) ([]*model.Comment, error) {
	return queryGetComments(ctx, s.tx, cardID)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, int, error) {
	return queryListEvents(ctx, s.tx, filter)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
