package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/makerspace/makeradmin/internal/models"
)

const memberColumns = `id, member_number, email, firstname, lastname, phone,
	address_street, address_zipcode, address_city, COALESCE(password_hash, ''), role,
	created_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.MemberNumber, &m.Email, &m.Firstname, &m.Lastname, &m.Phone,
		&m.AddressStreet, &m.AddressZipcode, &m.AddressCity, &m.PasswordHash, &m.Role,
		&m.CreatedAt, &m.DeletedAt)
	return m, err
}

// CreateMember inserts a member and returns it with the generated id and member number.
func (s *Storage) CreateMember(ctx context.Context, m models.Member) (models.Member, error) {
	const op = "storage.CreateMember"

	role := m.Role
	if role == "" {
		role = models.RoleMember
	}
	query := `INSERT INTO members (email, firstname, lastname, phone, address_street,
			      address_zipcode, address_city, password_hash, role)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + memberColumns
	created, err := scanMember(s.conn().QueryRowContext(ctx, query,
		strings.TrimSpace(m.Email), m.Firstname, m.Lastname, m.Phone, m.AddressStreet,
		m.AddressZipcode, m.AddressCity, nullString(m.PasswordHash), role))
	if err != nil {
		return models.Member{}, mapError(op, err)
	}
	return created, nil
}

// GetMember returns a non-deleted member by id.
func (s *Storage) GetMember(ctx context.Context, id int) (*models.Member, error) {
	const op = "storage.GetMember"

	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1 AND deleted_at IS NULL`
	m, err := scanMember(s.conn().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return &m, nil
}

// GetMemberByEmail looks a non-deleted member up by case-insensitive email.
func (s *Storage) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	const op = "storage.GetMemberByEmail"

	query := `SELECT ` + memberColumns + ` FROM members
			  WHERE lower(email) = lower($1) AND deleted_at IS NULL`
	m, err := scanMember(s.conn().QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		return nil, mapError(op, err)
	}
	return &m, nil
}

// ListMembers returns non-deleted members ordered by member number.
func (s *Storage) ListMembers(ctx context.Context, limit, offset int) ([]models.Member, error) {
	const op = "storage.ListMembers"

	query := `SELECT ` + memberColumns + ` FROM members
			  WHERE deleted_at IS NULL
			  ORDER BY member_number
			  LIMIT $1 OFFSET $2`
	rows, err := s.conn().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return members, nil
}

// DeleteMember soft deletes a member together with its keys.
func (s *Storage) DeleteMember(ctx context.Context, id int) error {
	const op = "storage.DeleteMember"

	return s.InTx(ctx, func(tx *Storage) error {
		res, err := tx.conn().ExecContext(ctx,
			`UPDATE members SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		} else if n == 0 {
			return fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		if _, err = tx.conn().ExecContext(ctx,
			`UPDATE keys SET deleted_at = NOW() WHERE member_id = $1 AND deleted_at IS NULL`, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// LockMember takes a row lock on the member for the rest of the transaction, serializing
// concurrent span grants for the same member. It must be called inside InTx.
func (s *Storage) LockMember(ctx context.Context, id int) error {
	const op = "storage.LockMember"

	var locked int
	err := s.conn().QueryRowContext(ctx,
		`SELECT id FROM members WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		return mapError(op, err)
	}
	return nil
}

// AccessMembers returns every non-deleted member that holds at least one key, with the end
// of their lab access and their key tags. Members that never had lab access get a nil EndDate.
func (s *Storage) AccessMembers(ctx context.Context) ([]models.AccessMember, error) {
	const op = "storage.AccessMembers"

	query := `SELECT m.id, m.member_number, m.firstname, m.lastname,
			      (SELECT MAX(sp.enddate) FROM spans sp
			       WHERE sp.member_id = m.id AND sp.deleted_at IS NULL AND sp.type = ANY($1)),
			      string_agg(k.tagid, ',' ORDER BY k.id)
			  FROM members m
			  JOIN keys k ON k.member_id = m.id AND k.deleted_at IS NULL
			  WHERE m.deleted_at IS NULL
			  GROUP BY m.id
			  ORDER BY m.member_number`
	rows, err := s.conn().QueryContext(ctx, query, spanTypes(models.LabAccessTypes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	members := make([]models.AccessMember, 0)
	for rows.Next() {
		var (
			am   models.AccessMember
			tags string
		)
		if err := rows.Scan(&am.MemberID, &am.MemberNumber, &am.Firstname, &am.Lastname,
			&am.EndDate, &tags); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, tag := range strings.Split(tags, ",") {
			am.Keys = append(am.Keys, models.AccessKey{TagID: tag})
		}
		members = append(members, am)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return members, nil
}
