// Package member manages member accounts, their login and their RFID keys.
package member

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/makerspace/makeradmin/internal/lib/jwt"
	"github.com/makerspace/makeradmin/internal/lib/password"
	"github.com/makerspace/makeradmin/internal/lib/rabbitmq"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/models"
)

// Repository is the member and key persistence used by the service.
type Repository interface {
	CreateMember(ctx context.Context, m models.Member) (models.Member, error)
	GetMember(ctx context.Context, id int) (*models.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (*models.Member, error)
	ListMembers(ctx context.Context, limit, offset int) ([]models.Member, error)
	DeleteMember(ctx context.Context, id int) error
	CreateKey(ctx context.Context, k models.Key) (models.Key, error)
	ListKeys(ctx context.Context, memberID int) ([]models.Key, error)
	DeleteKey(ctx context.Context, id int) error
	AccessMembers(ctx context.Context) ([]models.AccessMember, error)
}

// Publisher sends domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Registered is published when a member account is created.
type Registered struct {
	MemberID     int    `json:"member_id"`
	MemberNumber int    `json:"member_number"`
	Email        string `json:"email"`
	Firstname    string `json:"firstname"`
}

// Service implements member operations.
type Service struct {
	repo     Repository
	jwtMaker jwt.Maker
	events   Publisher
	log      *slog.Logger
}

// New returns a Service. events may be nil.
func New(repo Repository, jwtMaker jwt.Maker, events Publisher, log *slog.Logger) *Service {
	if events == nil {
		events = rabbitmq.NopPublisher{}
	}
	return &Service{
		repo:     repo,
		jwtMaker: jwtMaker,
		events:   events,
		log:      log,
	}
}

// Create stores a new member. The password is optional; members without one can only be
// logged in by an admin.
func (s *Service) Create(ctx context.Context, req models.CreateMemberRequest) (models.Member, error) {
	const op = "member.Create"

	m := models.Member{
		Email:          req.Email,
		Firstname:      req.Firstname,
		Lastname:       req.Lastname,
		Phone:          req.Phone,
		AddressStreet:  req.AddressStreet,
		AddressZipcode: req.AddressZipcode,
		AddressCity:    req.AddressCity,
		Role:           models.RoleMember,
	}
	if req.Password != "" {
		hash, err := password.GetHash(req.Password)
		if err != nil {
			return models.Member{}, fmt.Errorf("%s: %w", op, err)
		}
		m.PasswordHash = hash
	}

	created, err := s.repo.CreateMember(ctx, m)
	if err != nil {
		return models.Member{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("member created", sl.Op(op),
		slog.Int("member_id", created.ID), slog.Int("member_number", created.MemberNumber))
	event := Registered{
		MemberID:     created.ID,
		MemberNumber: created.MemberNumber,
		Email:        created.Email,
		Firstname:    created.Firstname,
	}
	if err := s.events.Publish(ctx, rabbitmq.RoutingMemberRegistered, event); err != nil {
		s.log.Warn("failed to publish member event", sl.Op(op), sl.Err(err))
	}
	return created, nil
}

// Get returns a member by id.
func (s *Service) Get(ctx context.Context, id int) (*models.Member, error) {
	const op = "member.Get"

	m, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// List returns a page of members.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Member, error) {
	const op = "member.List"

	members, err := s.repo.ListMembers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return members, nil
}

// Remove soft deletes a member and its keys.
func (s *Service) Remove(ctx context.Context, id int) error {
	const op = "member.Remove"

	if err := s.repo.DeleteMember(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("member removed", sl.Op(op), slog.Int("member_id", id))
	return nil
}

// Login checks the credentials and returns a token for the member. Unknown e-mail and
// wrong password are both reported as ErrUnauthorized.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	const op = "member.Login"

	m, err := s.repo.GetMemberByEmail(ctx, req.Email)
	if errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, models.ErrUnauthorized)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if m.PasswordHash == "" || password.CompareHash(m.PasswordHash, req.Password) != nil {
		return "", fmt.Errorf("%s: %w", op, models.ErrUnauthorized)
	}
	return s.IssueToken(*m)
}

// IssueToken returns a token for m without checking credentials.
func (s *Service) IssueToken(m models.Member) (string, error) {
	const op = "member.IssueToken"

	token, err := s.jwtMaker.GenerateToken(m.ID, m.Role)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// AddKey attaches an RFID key to a member.
func (s *Service) AddKey(ctx context.Context, memberID int, req models.CreateKeyRequest) (models.Key, error) {
	const op = "member.AddKey"

	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return models.Key{}, fmt.Errorf("%s: %w", op, err)
	}
	key, err := s.repo.CreateKey(ctx, models.Key{MemberID: memberID, TagID: req.TagID, Description: req.Description})
	if err != nil {
		return models.Key{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("key added", sl.Op(op), slog.Int("member_id", memberID), slog.Int("key_id", key.ID))
	return key, nil
}

// Keys returns the keys of a member.
func (s *Service) Keys(ctx context.Context, memberID int) ([]models.Key, error) {
	const op = "member.Keys"

	keys, err := s.repo.ListKeys(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return keys, nil
}

// RemoveKey soft deletes a key.
func (s *Service) RemoveKey(ctx context.Context, keyID int) error {
	const op = "member.RemoveKey"

	if err := s.repo.DeleteKey(ctx, keyID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AccessData returns the members exported to the access-control sync.
func (s *Service) AccessData(ctx context.Context) ([]models.AccessMember, error) {
	const op = "member.AccessData"

	members, err := s.repo.AccessMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return members, nil
}
