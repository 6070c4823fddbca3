// Package membership keeps track of the time a member has access to the lab and is a
// member of the association. Access is stored as spans; every grant appends a new span
// after the member's existing coverage and is keyed by a creation reason so that the same
// purchase or admin action is never applied twice.
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/makerspace/makeradmin/internal/lib/rabbitmq"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/metrics"
	"github.com/makerspace/makeradmin/internal/models"
)

// Store is the span persistence used by the service.
type Store interface {
	GetMember(ctx context.Context, id int) (*models.Member, error)
	LockMember(ctx context.Context, id int) error
	SpanByCreationReason(ctx context.Context, reason string) (*models.Span, error)
	MaxEndDate(ctx context.Context, memberID int, t models.SpanType) (*models.Date, error)
	InsertSpan(ctx context.Context, sp models.Span) (models.Span, bool, error)
	MembershipSummary(ctx context.Context, memberID int, day models.Date) (models.MembershipData, error)
	ListSpans(ctx context.Context, memberID int, includeDeleted bool) ([]models.Span, error)
	DeleteSpan(ctx context.Context, id int) error
}

// Repository is a Store that can run a function inside a database transaction.
type Repository interface {
	Store
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// Publisher sends domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// SpanGranted is published after a grant created a new span.
type SpanGranted struct {
	MemberID       int             `json:"member_id"`
	SpanID         int             `json:"span_id"`
	Type           models.SpanType `json:"type"`
	StartDate      models.Date     `json:"startdate"`
	EndDate        models.Date     `json:"enddate"`
	CreationReason string          `json:"creation_reason,omitempty"`
}

// Service grants access days and reports membership status.
type Service struct {
	repo    Repository
	events  Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
	today   func() models.Date
}

// New returns a Service. events and m may be nil.
func New(repo Repository, events Publisher, m *metrics.Metrics, log *slog.Logger) *Service {
	if events == nil {
		events = rabbitmq.NopPublisher{}
	}
	return &Service{
		repo:    repo,
		events:  events,
		metrics: m,
		log:     log,
		today:   func() models.Date { return models.DateOf(time.Now().UTC()) },
	}
}

// Today returns the service's current date in UTC.
func (s *Service) Today() models.Date {
	return s.today()
}

// Summary returns the membership status of a member today.
func (s *Service) Summary(ctx context.Context, memberID int) (models.MembershipData, error) {
	const op = "membership.Summary"

	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return models.MembershipData{}, fmt.Errorf("%s: %w", op, err)
	}
	return s.SummaryAt(ctx, memberID, s.today())
}

// SummaryAt returns the membership status of a member on day.
func (s *Service) SummaryAt(ctx context.Context, memberID int, day models.Date) (models.MembershipData, error) {
	const op = "membership.SummaryAt"

	data, err := s.repo.MembershipSummary(ctx, memberID, day)
	if err != nil {
		return models.MembershipData{}, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// MaxCreationReasonLen bounds the creation reason of a grant.
const MaxCreationReasonLen = 255

// AddMembershipDays appends req.Days days of req.Type to the member and returns the
// refreshed summary.
//
// A repeated request with the same creation reason, type and number of days is a no-op.
// The same creation reason with another type or number of days is a not_unique conflict
// on creation_reason. The new span starts at the later of the member's last end date for
// the type and the requested start date, which defaults to today.
func (s *Service) AddMembershipDays(ctx context.Context, req models.AddDaysRequest) (models.MembershipData, error) {
	const op = "membership.AddMembershipDays"

	if req.Days < 0 {
		return models.MembershipData{}, &models.UnprocessableEntity{
			Message: "Number of days must be zero or more.", What: models.Invalid, Fields: "days",
		}
	}
	if !req.Type.Valid() {
		return models.MembershipData{}, &models.UnprocessableEntity{
			Message: fmt.Sprintf("Unknown span type %q.", req.Type), What: models.Invalid, Fields: "type",
		}
	}

	if len(req.CreationReason) > MaxCreationReasonLen {
		return models.MembershipData{}, &models.UnprocessableEntity{
			Message: fmt.Sprintf("Creation reason is longer than %d characters.", MaxCreationReasonLen),
			What:    models.Invalid, Fields: "creation_reason",
		}
	}

	log := s.log.With(
		sl.Op(op),
		slog.Int("member_id", req.MemberID),
		slog.String("type", string(req.Type)),
		slog.String("creation_reason", req.CreationReason),
	)

	today := s.today()
	var (
		created   models.Span
		inserted  bool
		duplicate bool
	)
	err := s.repo.InTx(ctx, func(tx Store) error {
		if err := tx.LockMember(ctx, req.MemberID); err != nil {
			return err
		}
		// A concurrent grant with the same reason can win the insert; the second pass sees
		// its committed span.
		for attempt := 0; attempt < 2; attempt++ {
			if req.CreationReason != "" {
				existing, err := tx.SpanByCreationReason(ctx, req.CreationReason)
				if err != nil {
					return err
				}
				if existing != nil {
					if existing.Type == req.Type && existing.Days() == req.Days {
						duplicate = true
						return nil
					}
					return models.NewNotUnique("creation_reason")
				}
			}

			start := today
			if req.DefaultStartDate != nil {
				start = *req.DefaultStartDate
			}
			last, err := tx.MaxEndDate(ctx, req.MemberID, req.Type)
			if err != nil {
				return err
			}
			if last != nil && last.After(start) {
				start = *last
			}

			created, inserted, err = tx.InsertSpan(ctx, models.Span{
				MemberID:       req.MemberID,
				Type:           req.Type,
				StartDate:      start,
				EndDate:        start.AddDays(req.Days),
				CreationReason: req.CreationReason,
			})
			if err != nil || inserted {
				return err
			}
		}
		return models.NewNotUnique("creation_reason")
	})
	if err != nil {
		return models.MembershipData{}, fmt.Errorf("%s: %w", op, err)
	}

	if duplicate {
		log.Info("grant already applied")
		s.metrics.SpanDuplicate(string(req.Type))
	} else {
		log.Info("span granted",
			slog.Int("span_id", created.ID),
			slog.String("startdate", created.StartDate.String()),
			slog.String("enddate", created.EndDate.String()),
		)
		s.metrics.SpanGranted(string(req.Type))
		event := SpanGranted{
			MemberID:       created.MemberID,
			SpanID:         created.ID,
			Type:           created.Type,
			StartDate:      created.StartDate,
			EndDate:        created.EndDate,
			CreationReason: created.CreationReason,
		}
		if err := s.events.Publish(ctx, rabbitmq.RoutingSpanGranted, event); err != nil {
			log.Warn("failed to publish span event", sl.Err(err))
		}
	}

	return s.SummaryAt(ctx, req.MemberID, today)
}

// ListSpans returns the spans of a member.
func (s *Service) ListSpans(ctx context.Context, memberID int, includeDeleted bool) ([]models.Span, error) {
	const op = "membership.ListSpans"

	spans, err := s.repo.ListSpans(ctx, memberID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return spans, nil
}

// RemoveSpan soft deletes a span. Its time no longer counts and its creation reason can
// be granted again.
func (s *Service) RemoveSpan(ctx context.Context, spanID int) error {
	const op = "membership.RemoveSpan"

	if err := s.repo.DeleteSpan(ctx, spanID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("span removed", sl.Op(op), slog.Int("span_id", spanID))
	return nil
}

// Periods returns the member's live spans merged into continuous periods per type.
func (s *Service) Periods(ctx context.Context, memberID int) ([]models.Period, error) {
	const op = "membership.Periods"

	spans, err := s.repo.ListSpans(ctx, memberID, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return AssemblePeriods(spans), nil
}
