package accesssync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/makerspace/makeradmin/internal/models"
)

// User is a card holder in the access-control database.
type User struct {
	ID           int64
	CustomerID   int64
	MemberNumber int
	Name         string
	Card         string
	StopDate     *models.Date
	Blocked      bool
}

// Store is the access-control database. Users belong to a customer and are given
// access through authorities.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the access database at path.
func OpenStore(path string) (*Store, error) {
	const op = "accesssync.OpenStore"

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: create dirs: %w", op, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: open sqlite: %w", op, err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id   INTEGER NOT NULL,
			member_number INTEGER NOT NULL,
			name          TEXT NOT NULL,
			card          TEXT NOT NULL DEFAULT '',
			stop_date     TEXT,
			blocked       INTEGER NOT NULL DEFAULT 0
		);
		CREATE UNIQUE INDEX IF NOT EXISTS users_customer_member ON users (customer_id, member_number);
		CREATE TABLE IF NOT EXISTS user_authorities (
			user_id      INTEGER NOT NULL REFERENCES users (id),
			authority_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, authority_id)
		);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: create tables: %w", op, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Users returns the users of a customer ordered by member number.
func (s *Store) Users(ctx context.Context, customerID int64) ([]User, error) {
	const op = "accesssync.Store.Users"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, member_number, name, card, stop_date, blocked
		FROM users WHERE customer_id = ? ORDER BY member_number`, customerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		var (
			u    User
			stop sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.CustomerID, &u.MemberNumber, &u.Name, &u.Card, &stop, &u.Blocked); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if stop.Valid {
			d, err := models.ParseDate(stop.String)
			if err != nil {
				return nil, fmt.Errorf("%s: user %d: %w", op, u.ID, err)
			}
			u.StopDate = &d
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// AddUser inserts u for its customer and grants it the authority.
func (s *Store) AddUser(ctx context.Context, u User, authorityID int64) (int64, error) {
	const op = "accesssync.Store.AddUser"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (customer_id, member_number, name, card, stop_date, blocked)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.CustomerID, u.MemberNumber, u.Name, u.Card, dateString(u.StopDate), u.Blocked)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_authorities (user_id, authority_id) VALUES (?, ?)`, id, authorityID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// UpdateUser stores the card, stop date and blocked flag of u.
func (s *Store) UpdateUser(ctx context.Context, u User) error {
	const op = "accesssync.Store.UpdateUser"

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET card = ?, stop_date = ?, blocked = ?, name = ? WHERE id = ?`,
		u.Card, dateString(u.StopDate), u.Blocked, u.Name, u.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return fmt.Errorf("%s: user %d: %w", op, u.ID, models.ErrNotFound)
	}
	return nil
}

// BlockUser blocks the user with id.
func (s *Store) BlockUser(ctx context.Context, id int64) error {
	const op = "accesssync.Store.BlockUser"

	if _, err := s.db.ExecContext(ctx, `UPDATE users SET blocked = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func dateString(d *models.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
