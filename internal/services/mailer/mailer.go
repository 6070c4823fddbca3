// Package mailer sends the e-mails that follow member registration and completed purchases.
// It consumes the domain events published by the member and shop services.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/makerspace/makeradmin/internal/lib/rabbitmq"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/lib/smtp"
	"github.com/makerspace/makeradmin/internal/models"
	"github.com/makerspace/makeradmin/internal/services/member"
	"github.com/makerspace/makeradmin/internal/services/shop"
)

// Transport opens mail sessions.
type Transport interface {
	Connect() (smtp.Client, error)
	From() string
}

// Members looks up the recipient of transaction mail.
type Members interface {
	Get(ctx context.Context, id int) (*models.Member, error)
}

// Service turns events into e-mails.
type Service struct {
	transport Transport
	members   Members
	log       *slog.Logger
}

// New returns a Service.
func New(transport Transport, members Members, log *slog.Logger) *Service {
	return &Service{transport: transport, members: members, log: log}
}

// Handle sends the mail for one event. Malformed events and events for deleted members are
// logged and dropped; failures to deliver are returned so the event is retried.
func (s *Service) Handle(ctx context.Context, routingKey string, body []byte) error {
	const op = "mailer.Handle"
	log := s.log.With(sl.Op(op), slog.String("routing_key", routingKey))

	var err error
	switch routingKey {
	case rabbitmq.RoutingMemberRegistered:
		err = s.welcome(body)
	case rabbitmq.RoutingTransactionCompleted:
		err = s.receipt(ctx, body)
	default:
		log.Debug("no mail for event")
		return nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		log.Error("dropping malformed event", sl.Err(err))
		return nil
	case errors.Is(err, models.ErrNotFound):
		log.Warn("dropping event for unknown member", sl.Err(err))
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) welcome(body []byte) error {
	var event member.Registered
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}
	text := fmt.Sprintf("Hi %s!\n\nWelcome to the makerspace. Your member number is %d.\n\n"+
		"Lab access is granted once you have attended an introduction and received your key.",
		event.Firstname, event.MemberNumber)
	return s.send(event.Email, "Welcome to the makerspace", text)
}

func (s *Service) receipt(ctx context.Context, body []byte) error {
	var event shop.TransactionCompleted
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}
	m, err := s.members.Get(ctx, event.MemberID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Hi %s!\n\nThank you for your purchase. Transaction %d of %s SEK is completed.\n\n"+
		"Your receipt is available in the member portal.",
		m.Firstname, event.TransactionID, event.Amount)
	return s.send(m.Email, fmt.Sprintf("Receipt for transaction %d", event.TransactionID), text)
}

func (s *Service) send(to, subject, text string) error {
	const op = "mailer.send"
	from := s.transport.From()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		strings.ReplaceAll(text, "\n", "\r\n"),
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("%s: mail from: %w", op, err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("%s: rcpt to: %w", op, err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("email sent", sl.Op(op), slog.String("to", to), slog.String("subject", subject))
	return nil
}
