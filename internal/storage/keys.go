package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/makerspace/makeradmin/internal/models"
)

// CreateKey attaches a key tag to a member. A tag can belong to one live key only.
func (s *Storage) CreateKey(ctx context.Context, k models.Key) (models.Key, error) {
	const op = "storage.CreateKey"

	query := `INSERT INTO keys (member_id, tagid, description)
			  VALUES ($1, $2, $3)
			  RETURNING id, member_id, tagid, description, created_at, deleted_at`
	var created models.Key
	err := s.conn().QueryRowContext(ctx, query, k.MemberID, strings.TrimSpace(k.TagID), k.Description).
		Scan(&created.ID, &created.MemberID, &created.TagID, &created.Description, &created.CreatedAt, &created.DeletedAt)
	if err != nil {
		return models.Key{}, mapError(op, err)
	}
	return created, nil
}

// ListKeys returns the live keys of a member.
func (s *Storage) ListKeys(ctx context.Context, memberID int) ([]models.Key, error) {
	const op = "storage.ListKeys"

	query := `SELECT id, member_id, tagid, description, created_at, deleted_at
			  FROM keys WHERE member_id = $1 AND deleted_at IS NULL
			  ORDER BY id`
	rows, err := s.conn().QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	keys := make([]models.Key, 0)
	for rows.Next() {
		var k models.Key
		if err := rows.Scan(&k.ID, &k.MemberID, &k.TagID, &k.Description, &k.CreatedAt, &k.DeletedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return keys, nil
}

// DeleteKey soft deletes a key.
func (s *Storage) DeleteKey(ctx context.Context, id int) error {
	const op = "storage.DeleteKey"

	res, err := s.conn().ExecContext(ctx,
		`UPDATE keys SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}
