package shop

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/makerspace/makeradmin/internal/models"
	"github.com/makerspace/makeradmin/internal/paymentprovider"
)

type StoreMock struct{ mock.Mock }

func (m *StoreMock) ProductCategories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}

func (m *StoreMock) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *StoreMock) MembershipProducts(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *StoreMock) CreateCategory(ctx context.Context, name string, displayOrder int) (models.Category, error) {
	args := m.Called(ctx, name, displayOrder)
	return args.Get(0).(models.Category), args.Error(1)
}

func (m *StoreMock) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(models.Product), args.Error(1)
}

func (m *StoreMock) DeleteProduct(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *StoreMock) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(models.Transaction), args.Error(1)
}

func (m *StoreMock) SetPaymentReference(ctx context.Context, transactionID int, ref string) error {
	return m.Called(ctx, transactionID, ref).Error(0)
}

func (m *StoreMock) FailTransaction(ctx context.Context, transactionID int) error {
	return m.Called(ctx, transactionID).Error(0)
}

func (m *StoreMock) CompleteTransaction(ctx context.Context, transactionID int) (models.Transaction, []models.TransactionAction, error) {
	args := m.Called(ctx, transactionID)
	var actions []models.TransactionAction
	if args.Get(1) != nil {
		actions = args.Get(1).([]models.TransactionAction)
	}
	return args.Get(0).(models.Transaction), actions, args.Error(2)
}

func (m *StoreMock) PendingActions(ctx context.Context, memberID int, action models.ActionName, onlyWithKeys bool) ([]models.PendingAction, error) {
	args := m.Called(ctx, memberID, action, onlyWithKeys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PendingAction), args.Error(1)
}

func (m *StoreMock) CompleteAction(ctx context.Context, actionID int) error {
	return m.Called(ctx, actionID).Error(0)
}

func (m *StoreMock) TransactionHistory(ctx context.Context, memberID int) ([]models.Transaction, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *StoreMock) GetTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type MembersMock struct{ mock.Mock }

func (m *MembersMock) Create(ctx context.Context, req models.CreateMemberRequest) (models.Member, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.Member), args.Error(1)
}

func (m *MembersMock) Get(ctx context.Context, id int) (*models.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MembersMock) IssueToken(member models.Member) (string, error) {
	args := m.Called(member)
	return args.String(0), args.Error(1)
}

type GranterMock struct{ mock.Mock }

func (m *GranterMock) AddMembershipDays(ctx context.Context, req models.AddDaysRequest) (models.MembershipData, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.MembershipData), args.Error(1)
}

type PaymentsMock struct{ mock.Mock }

func (m *PaymentsMock) CreatePayment(ctx context.Context, key string, req paymentprovider.CreatePaymentRequest) (*paymentprovider.CreatePaymentResponse, error) {
	args := m.Called(ctx, key, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.CreatePaymentResponse), args.Error(1)
}

func (m *PaymentsMock) Currency() string  { return "sek" }
func (m *PaymentsMock) ReturnURL() string { return "http://shop.local/receipt" }

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}
