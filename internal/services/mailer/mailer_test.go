package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/makerspace/makeradmin/internal/lib/rabbitmq"
	"github.com/makerspace/makeradmin/internal/lib/smtp"
	"github.com/makerspace/makeradmin/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) From() string {
	return m.Called().String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error { return m.Called(from).Error(0) }
func (m *MockSMTPClient) Rcpt(to string) error   { return m.Called(to).Error(0) }
func (m *MockSMTPClient) Quit() error            { return m.Called().Error(0) }
func (m *MockSMTPClient) Close() error           { return m.Called().Error(0) }

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

type MockMembers struct {
	mock.Mock
}

func (m *MockMembers) Get(ctx context.Context, id int) (*models.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

type bufferCloser struct {
	bytes.Buffer
}

func (*bufferCloser) Close() error { return nil }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// expectDelivery sets up a successful session to rcpt and returns the written message.
func expectDelivery(tr *MockTransport, rcpt string) *bufferCloser {
	client := new(MockSMTPClient)
	written := new(bufferCloser)
	tr.On("From").Return("info@makerspace.test")
	tr.On("Connect").Return(client, nil).Once()
	client.On("Mail", "info@makerspace.test").Return(nil).Once()
	client.On("Rcpt", rcpt).Return(nil).Once()
	client.On("Data").Return(written, nil).Once()
	client.On("Quit").Return(nil).Once()
	client.On("Close").Return(nil).Once()
	return written
}

func TestHandle_Welcome(t *testing.T) {
	tr := new(MockTransport)
	written := expectDelivery(tr, "anna@example.com")
	s := New(tr, new(MockMembers), newNoopLogger())

	body := []byte(`{"member_id":1,"member_number":1042,"email":"anna@example.com","firstname":"Anna"}`)
	require.NoError(t, s.Handle(context.Background(), rabbitmq.RoutingMemberRegistered, body))

	msg := written.String()
	assert.Contains(t, msg, "To: anna@example.com\r\n")
	assert.Contains(t, msg, "Subject: Welcome to the makerspace\r\n")
	assert.Contains(t, msg, "Hi Anna!")
	assert.Contains(t, msg, "1042")
	tr.AssertExpectations(t)
}

func TestHandle_Receipt(t *testing.T) {
	tr := new(MockTransport)
	written := expectDelivery(tr, "bo@example.com")
	members := new(MockMembers)
	members.On("Get", mock.Anything, 7).Return(&models.Member{ID: 7, Email: "bo@example.com", Firstname: "Bo"}, nil)
	s := New(tr, members, newNoopLogger())

	body := []byte(`{"transaction_id":12,"member_id":7,"amount":"300.00"}`)
	require.NoError(t, s.Handle(context.Background(), rabbitmq.RoutingTransactionCompleted, body))

	msg := written.String()
	assert.Contains(t, msg, "Subject: Receipt for transaction 12\r\n")
	assert.Contains(t, msg, "300.00 SEK")
	members.AssertExpectations(t)
}

func TestHandle_DropsWhatCannotBeDelivered(t *testing.T) {
	members := new(MockMembers)
	members.On("Get", mock.Anything, 7).Return(nil, fmt.Errorf("storage.GetMember: %w", models.ErrNotFound))
	tr := new(MockTransport)
	s := New(tr, members, newNoopLogger())
	ctx := context.Background()

	assert.NoError(t, s.Handle(ctx, rabbitmq.RoutingMemberRegistered, []byte(`{not json`)))
	assert.NoError(t, s.Handle(ctx, rabbitmq.RoutingMemberRegistered, []byte(`{"member_number":"x"}`)))
	assert.NoError(t, s.Handle(ctx, rabbitmq.RoutingTransactionCompleted, []byte(`{"transaction_id":1,"member_id":7}`)))
	assert.NoError(t, s.Handle(ctx, rabbitmq.RoutingSpanGranted, []byte(`{}`)))
	tr.AssertNotCalled(t, "Connect")
}

func TestHandle_DeliveryFailureIsRetried(t *testing.T) {
	tr := new(MockTransport)
	tr.On("From").Return("info@makerspace.test")
	tr.On("Connect").Return(nil, errors.New("connection refused"))
	s := New(tr, new(MockMembers), newNoopLogger())

	err := s.Handle(context.Background(), rabbitmq.RoutingMemberRegistered,
		[]byte(`{"member_id":1,"member_number":1,"email":"anna@example.com","firstname":"Anna"}`))
	assert.ErrorContains(t, err, "connection refused")
}

func TestHandle_RecipientRejected(t *testing.T) {
	tr := new(MockTransport)
	client := new(MockSMTPClient)
	tr.On("From").Return("info@makerspace.test")
	tr.On("Connect").Return(client, nil)
	client.On("Mail", "info@makerspace.test").Return(nil)
	client.On("Rcpt", "anna@example.com").Return(errors.New("550 no such user"))
	client.On("Close").Return(nil)
	s := New(tr, new(MockMembers), newNoopLogger())

	err := s.Handle(context.Background(), rabbitmq.RoutingMemberRegistered,
		[]byte(`{"member_id":1,"member_number":1,"email":"anna@example.com","firstname":"Anna"}`))
	assert.ErrorContains(t, err, "rcpt to")
	client.AssertNotCalled(t, "Data")
}
