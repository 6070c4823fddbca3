package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/makerspace/makeradmin/internal/models"
)

const spanColumns = `id, member_id, type, startdate, enddate, COALESCE(creation_reason, ''),
	created_at, deleted_at`

func scanSpan(row rowScanner) (models.Span, error) {
	var sp models.Span
	err := row.Scan(&sp.ID, &sp.MemberID, &sp.Type, &sp.StartDate, &sp.EndDate, &sp.CreationReason,
		&sp.CreatedAt, &sp.DeletedAt)
	return sp, err
}

// MembershipSummary computes the membership status of a member on day from its live spans.
// A span covers day when startdate <= day <= enddate.
func (s *Storage) MembershipSummary(ctx context.Context, memberID int, day models.Date) (models.MembershipData, error) {
	const op = "storage.MembershipSummary"

	query := `SELECT
			      COUNT(*) FILTER (WHERE type = ANY($2) AND startdate <= $4 AND enddate >= $4) > 0,
			      MAX(enddate) FILTER (WHERE type = ANY($2)),
			      COUNT(*) FILTER (WHERE type = ANY($3) AND startdate <= $4 AND enddate >= $4) > 0,
			      MAX(enddate) FILTER (WHERE type = ANY($3))
			  FROM spans
			  WHERE member_id = $1 AND deleted_at IS NULL`
	var data models.MembershipData
	err := s.conn().QueryRowContext(ctx, query, memberID,
		spanTypes(models.LabAccessTypes), spanTypes(models.MembershipTypes), day).
		Scan(&data.HasLabAccess, &data.LabAccessEnd, &data.HasMembership, &data.MembershipEnd)
	if err != nil {
		return models.MembershipData{}, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// MaxEndDate returns the latest enddate among the member's live spans of type t, or nil.
func (s *Storage) MaxEndDate(ctx context.Context, memberID int, t models.SpanType) (*models.Date, error) {
	const op = "storage.MaxEndDate"

	var end *models.Date
	err := s.conn().QueryRowContext(ctx,
		`SELECT MAX(enddate) FROM spans WHERE member_id = $1 AND type = $2 AND deleted_at IS NULL`,
		memberID, string(t)).Scan(&end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return end, nil
}

// SpanByCreationReason returns the live span created for reason, or nil when there is none.
func (s *Storage) SpanByCreationReason(ctx context.Context, reason string) (*models.Span, error) {
	const op = "storage.SpanByCreationReason"

	query := `SELECT ` + spanColumns + ` FROM spans WHERE creation_reason = $1 AND deleted_at IS NULL`
	sp, err := scanSpan(s.conn().QueryRowContext(ctx, query, reason))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sp, nil
}

// InsertSpan stores a span. It reports false without error when a live span with the same
// creation reason already exists; spans without a reason are always inserted.
func (s *Storage) InsertSpan(ctx context.Context, sp models.Span) (models.Span, bool, error) {
	const op = "storage.InsertSpan"

	query := `INSERT INTO spans (member_id, type, startdate, enddate, creation_reason)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (creation_reason) WHERE deleted_at IS NULL DO NOTHING
			  RETURNING ` + spanColumns
	created, err := scanSpan(s.conn().QueryRowContext(ctx, query,
		sp.MemberID, string(sp.Type), sp.StartDate, sp.EndDate, nullString(sp.CreationReason)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Span{}, false, nil
	}
	if err != nil {
		return models.Span{}, false, mapError(op, err)
	}
	return created, true, nil
}

// ListSpans returns the spans of a member ordered by start date. Deleted spans are included
// only when includeDeleted is set.
func (s *Storage) ListSpans(ctx context.Context, memberID int, includeDeleted bool) ([]models.Span, error) {
	const op = "storage.ListSpans"

	query := `SELECT ` + spanColumns + ` FROM spans
			  WHERE member_id = $1 AND ($2 OR deleted_at IS NULL)
			  ORDER BY startdate, id`
	rows, err := s.conn().QueryContext(ctx, query, memberID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	spans := make([]models.Span, 0)
	for rows.Next() {
		sp, err := scanSpan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		spans = append(spans, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return spans, nil
}

// GetSpan returns a live span by id.
func (s *Storage) GetSpan(ctx context.Context, id int) (*models.Span, error) {
	const op = "storage.GetSpan"

	query := `SELECT ` + spanColumns + ` FROM spans WHERE id = $1 AND deleted_at IS NULL`
	sp, err := scanSpan(s.conn().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return &sp, nil
}

// DeleteSpan soft deletes a span, which frees its creation reason for reuse.
func (s *Storage) DeleteSpan(ctx context.Context, id int) error {
	const op = "storage.DeleteSpan"

	res, err := s.conn().ExecContext(ctx,
		`UPDATE spans SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
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
