// Package storage implements MakerAdmin persistence on PostgreSQL: members and their keys,
// access spans, and the webshop catalog and transactions. All methods take a context and
// can run either directly on the pool or inside a transaction started with InTx.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	// Registers the pgx driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/makerspace/makeradmin/internal/models"
)

const uniqueViolation = "23505"

// querier is the subset of *sql.DB and *sql.Tx the storage methods need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Storage wraps the PostgreSQL connection pool.
type Storage struct {
	DB *sql.DB
	q  querier
}

// New opens a connection pool and checks it is reachable.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db, q: db}, nil
}

// Close closes the pool.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady verifies the schema has been migrated.
func CheckDatabaseReady(ctx context.Context, s *Storage) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = 'spans'
	)`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return errors.New("storage.CheckDatabaseReady: required table spans missing")
	}
	return nil
}

// InTx runs fn with a Storage bound to a new transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Calling InTx on a Storage that is already inside a
// transaction reuses it.
func (s *Storage) InTx(ctx context.Context, fn func(tx *Storage) error) error {
	const op = "storage.InTx"

	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err = fn(&Storage{DB: s.DB, q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) conn() querier {
	if s.q == nil {
		return s.DB
	}
	return s.q
}

// mapError turns driver errors into domain errors: unique violations on known indexes
// become not_unique conflicts naming the request field, missing rows become ErrNotFound.
func mapError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "members_email_key":
			return models.NewNotUnique("email")
		case "members_member_number_key":
			return models.NewNotUnique("member_number")
		case "keys_tagid_key":
			return models.NewNotUnique("tagid")
		case "spans_creation_reason_key":
			return models.NewNotUnique("creation_reason")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func spanTypes(types []models.SpanType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
