// Package shop implements the webshop: the product catalog, paying for a cart,
// registering new members together with their first membership purchase, and turning
// completed transactions into membership and lab access time.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/makerspace/makeradmin/internal/lib/rabbitmq"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/metrics"
	"github.com/makerspace/makeradmin/internal/models"
	"github.com/makerspace/makeradmin/internal/paymentprovider"
)

const productDataKey = "shop:product_data"

// Store is the shop persistence used by the service.
type Store interface {
	ProductCategories(ctx context.Context) ([]models.Category, error)
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	MembershipProducts(ctx context.Context) ([]models.Product, error)
	CreateCategory(ctx context.Context, name string, displayOrder int) (models.Category, error)
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	DeleteProduct(ctx context.Context, id int) error
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)
	SetPaymentReference(ctx context.Context, transactionID int, ref string) error
	FailTransaction(ctx context.Context, transactionID int) error
	CompleteTransaction(ctx context.Context, transactionID int) (models.Transaction, []models.TransactionAction, error)
	PendingActions(ctx context.Context, memberID int, action models.ActionName, onlyWithKeys bool) ([]models.PendingAction, error)
	CompleteAction(ctx context.Context, actionID int) error
	TransactionHistory(ctx context.Context, memberID int) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id int) (*models.Transaction, error)
}

// Members creates and looks up members.
type Members interface {
	Create(ctx context.Context, req models.CreateMemberRequest) (models.Member, error)
	Get(ctx context.Context, id int) (*models.Member, error)
	IssueToken(m models.Member) (string, error)
}

// Granter adds membership or lab access days to a member.
type Granter interface {
	AddMembershipDays(ctx context.Context, req models.AddDaysRequest) (models.MembershipData, error)
}

// PaymentProvider starts card payments.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, idempotencyKey string, req paymentprovider.CreatePaymentRequest) (*paymentprovider.CreatePaymentResponse, error)
	Currency() string
	ReturnURL() string
}

// Cache stores JSON values.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher sends domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// TransactionCompleted is published when a transaction has been paid.
type TransactionCompleted struct {
	TransactionID int          `json:"transaction_id"`
	MemberID      int          `json:"member_id"`
	Amount        models.Money `json:"amount"`
}

// Deps are the collaborators of the Service. Cache, Events and Metrics are optional.
type Deps struct {
	Store    Store
	Members  Members
	Granter  Granter
	Payments PaymentProvider
	Cache    Cache
	CacheTTL time.Duration
	Events   Publisher
	Metrics  *metrics.Metrics
}

// Service implements the shop.
type Service struct {
	store    Store
	members  Members
	granter  Granter
	payments PaymentProvider
	cache    Cache
	cacheTTL time.Duration
	events   Publisher
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New returns a Service.
func New(deps Deps, log *slog.Logger) *Service {
	events := deps.Events
	if events == nil {
		events = rabbitmq.NopPublisher{}
	}
	return &Service{
		store:    deps.Store,
		members:  deps.Members,
		granter:  deps.Granter,
		payments: deps.Payments,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		events:   events,
		metrics:  deps.Metrics,
		log:      log,
	}
}

// ProductData returns the public catalog, from cache when possible.
func (s *Service) ProductData(ctx context.Context) ([]models.Category, error) {
	const op = "shop.ProductData"

	if s.cache != nil {
		var cached []models.Category
		found, err := s.cache.Get(ctx, productDataKey, &cached)
		if err != nil {
			s.log.Warn("failed to read catalog from cache", sl.Op(op), sl.Err(err))
		}
		s.metrics.CatalogRead(found)
		if found {
			return cached, nil
		}
	}

	categories, err := s.store.ProductCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range categories {
		for j := range categories[i].Items {
			withDefaultImage(&categories[i].Items[j])
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, productDataKey, categories, s.cacheTTL); err != nil {
			s.log.Warn("failed to cache catalog", sl.Op(op), sl.Err(err))
		}
	}
	return categories, nil
}

// Product returns a single product.
func (s *Service) Product(ctx context.Context, id int) (*models.Product, error) {
	const op = "shop.Product"

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	withDefaultImage(p)
	return p, nil
}

// MembershipProducts returns the products that can be bought when registering.
func (s *Service) MembershipProducts(ctx context.Context) ([]models.Product, error) {
	const op = "shop.MembershipProducts"

	products, err := s.store.MembershipProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range products {
		withDefaultImage(&products[i])
	}
	return products, nil
}

// CreateCategory adds a product category.
func (s *Service) CreateCategory(ctx context.Context, req models.CreateCategoryRequest) (models.Category, error) {
	const op = "shop.CreateCategory"

	c, err := s.store.CreateCategory(ctx, req.Name, req.DisplayOrder)
	if err != nil {
		return models.Category{}, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCatalog(ctx)
	return c, nil
}

// CreateProduct adds a product to the catalog.
func (s *Service) CreateProduct(ctx context.Context, req models.CreateProductRequest) (models.Product, error) {
	const op = "shop.CreateProduct"

	multiple := req.SmallestMultiple
	if multiple == 0 {
		multiple = 1
	}
	p, err := s.store.CreateProduct(ctx, models.Product{
		CategoryID:       req.CategoryID,
		Name:             req.Name,
		Description:      req.Description,
		Unit:             req.Unit,
		Price:            req.Price,
		SmallestMultiple: multiple,
		DisplayOrder:     req.DisplayOrder,
		Image:            req.Image,
		Actions:          req.Actions,
	})
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCatalog(ctx)
	s.log.Info("product created", sl.Op(op), slog.Int("product_id", p.ID))
	return p, nil
}

// DeleteProduct removes a product from the catalog.
func (s *Service) DeleteProduct(ctx context.Context, id int) error {
	const op = "shop.DeleteProduct"

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, productDataKey); err != nil {
		s.log.Warn("failed to invalidate catalog cache", sl.Err(err))
	}
}

func withDefaultImage(p *models.Product) {
	if p.Image == "" {
		p.Image = models.DefaultProductImage
	}
}

// Pay creates a pending transaction for the purchase and starts the payment.
func (s *Service) Pay(ctx context.Context, memberID int, purchase models.Purchase) (models.PayResult, error) {
	const op = "shop.Pay"

	contents, total, err := s.priceCart(ctx, purchase)
	if err != nil {
		return models.PayResult{}, fmt.Errorf("%s: %w", op, err)
	}

	t, err := s.store.CreateTransaction(ctx, models.Transaction{
		MemberID: memberID,
		Amount:   total,
		Contents: contents,
	})
	if err != nil {
		return models.PayResult{}, fmt.Errorf("%s: %w", op, err)
	}
	log := s.log.With(sl.Op(op), slog.Int("transaction_id", t.ID), slog.Int("member_id", memberID))

	payment, err := s.payments.CreatePayment(ctx, uuid.NewString(), paymentprovider.CreatePaymentRequest{
		Amount:      int64(total),
		Currency:    s.payments.Currency(),
		Description: fmt.Sprintf("MakerAdmin transaction %d", t.ID),
		ReturnURL:   s.payments.ReturnURL() + "?transaction_id=" + strconv.Itoa(t.ID),
		Metadata:    map[string]string{"transaction_id": strconv.Itoa(t.ID)},
	})
	if err != nil {
		log.Error("payment failed", sl.Err(err))
		if ferr := s.store.FailTransaction(ctx, t.ID); ferr != nil {
			log.Error("failed to mark transaction failed", sl.Err(ferr))
		}
		s.metrics.Transaction(models.TransactionFailed)
		return models.PayResult{}, fmt.Errorf("%s: %w", op, &models.BadRequest{Message: "Payment failed."})
	}
	if err := s.store.SetPaymentReference(ctx, t.ID, payment.ID); err != nil {
		return models.PayResult{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("payment started", slog.String("payment_id", payment.ID), slog.String("amount", total.String()))
	s.metrics.Transaction(models.TransactionPending)
	return models.PayResult{TransactionID: t.ID, Redirect: payment.RedirectURL}, nil
}

// priceCart checks the cart against the catalog and the total the buyer saw.
func (s *Service) priceCart(ctx context.Context, purchase models.Purchase) ([]models.TransactionContent, models.Money, error) {
	if len(purchase.Cart) == 0 {
		return nil, 0, &models.BadRequest{Message: "No items in cart."}
	}

	var total models.Money
	contents := make([]models.TransactionContent, 0, len(purchase.Cart))
	for _, item := range purchase.Cart {
		p, err := s.store.GetProduct(ctx, item.ID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, 0, &models.BadRequest{Message: fmt.Sprintf("Item %d does not exist.", item.ID)}
		}
		if err != nil {
			return nil, 0, err
		}
		multiple := max(p.SmallestMultiple, 1)
		if item.Count <= 0 || item.Count%multiple != 0 {
			return nil, 0, &models.BadRequest{
				Message: fmt.Sprintf("Bad count for %q, must be a positive multiple of %d.", p.Name, multiple),
			}
		}
		amount := p.Price.Times(item.Count)
		total += amount
		contents = append(contents, models.TransactionContent{ProductID: p.ID, Count: item.Count, Amount: amount})
	}

	if total <= 0 {
		return nil, 0, &models.BadRequest{Message: "Total amount must be positive."}
	}
	if total != purchase.TotalAmount {
		return nil, 0, &models.BadRequest{Message: fmt.Sprintf(
			"Expected total amount to pay to be %s but the cart sums to %s.", purchase.TotalAmount, total)}
	}
	return contents, total, nil
}

// RegisterMember creates a member and starts the payment of its first membership. The
// purchase must be exactly one membership product.
func (s *Service) RegisterMember(ctx context.Context, req models.RegisterRequest) (models.RegisterResult, error) {
	const op = "shop.RegisterMember"

	if err := s.checkRegistrationCart(ctx, req.Purchase); err != nil {
		return models.RegisterResult{}, fmt.Errorf("%s: %w", op, err)
	}

	m, err := s.members.Create(ctx, req.Member)
	if err != nil {
		return models.RegisterResult{}, fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.members.IssueToken(m)
	if err != nil {
		return models.RegisterResult{}, fmt.Errorf("%s: %w", op, err)
	}
	paid, err := s.Pay(ctx, m.ID, req.Purchase)
	if err != nil {
		return models.RegisterResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("member registered", sl.Op(op), slog.Int("member_id", m.ID), slog.Int("transaction_id", paid.TransactionID))
	return models.RegisterResult{TransactionID: paid.TransactionID, Token: token, Redirect: paid.Redirect}, nil
}

func (s *Service) checkRegistrationCart(ctx context.Context, purchase models.Purchase) error {
	bad := &models.BadRequest{Message: "The purchase must contain exactly one membership product."}
	if len(purchase.Cart) != 1 || purchase.Cart[0].Count != 1 {
		return bad
	}
	products, err := s.store.MembershipProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		if p.ID == purchase.Cart[0].ID {
			return nil
		}
	}
	return bad
}

// CompleteTransaction marks a paid transaction as completed. Membership days are granted
// right away; lab access waits for ShipOrders since it needs a key.
func (s *Service) CompleteTransaction(ctx context.Context, transactionID int) (models.Transaction, error) {
	const op = "shop.CompleteTransaction"

	t, actions, err := s.store.CompleteTransaction(ctx, transactionID)
	if errors.Is(err, models.ErrTransactionNotPending) {
		return models.Transaction{}, fmt.Errorf("%s: %w", op,
			&models.BadRequest{Message: fmt.Sprintf("Transaction %d is not pending.", transactionID)})
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}
	log := s.log.With(sl.Op(op), slog.Int("transaction_id", t.ID), slog.Int("member_id", t.MemberID))
	log.Info("transaction completed", slog.Int("actions", len(actions)))
	s.metrics.Transaction(models.TransactionCompleted)

	event := TransactionCompleted{TransactionID: t.ID, MemberID: t.MemberID, Amount: t.Amount}
	if err := s.events.Publish(ctx, rabbitmq.RoutingTransactionCompleted, event); err != nil {
		log.Warn("failed to publish transaction event", sl.Err(err))
	}

	for _, a := range actions {
		if a.Action != models.AddMembershipDays {
			continue
		}
		if err := s.performAction(ctx, t.MemberID, a); err != nil {
			return t, fmt.Errorf("%s: %w", op, err)
		}
	}
	return t, nil
}

// PendingActions lists actions of completed transactions that have not been performed.
// A zero memberID lists all members.
func (s *Service) PendingActions(ctx context.Context, memberID int) ([]models.PendingAction, error) {
	const op = "shop.PendingActions"

	pending, err := s.store.PendingActions(ctx, memberID, "", false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pending, nil
}

// ShipOrders grants pending lab access to members that have a key. It also performs
// membership actions left pending when CompleteTransaction failed to grant them; those need
// no key. Each action is granted with its own creation reason, so a run interrupted halfway
// can be repeated safely.
func (s *Service) ShipOrders(ctx context.Context) (models.ShipResult, error) {
	const op = "shop.ShipOrders"

	labaccess, err := s.store.PendingActions(ctx, 0, models.AddLabAccessDays, true)
	if err != nil {
		return models.ShipResult{}, fmt.Errorf("%s: %w", op, err)
	}
	membership, err := s.store.PendingActions(ctx, 0, models.AddMembershipDays, false)
	if err != nil {
		return models.ShipResult{}, fmt.Errorf("%s: %w", op, err)
	}
	pending := append(labaccess, membership...)

	var (
		result models.ShipResult
		errs   []error
	)
	for _, pa := range pending {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.performAction(ctx, pa.MemberID, pa.Action); err != nil {
			s.log.Error("failed to ship action", sl.Op(op),
				slog.Int("action_id", pa.Action.ID), slog.Int("member_id", pa.MemberID), sl.Err(err))
			result.Failed++
			errs = append(errs, err)
			continue
		}
		result.Shipped++
	}
	s.log.Info("orders shipped", sl.Op(op), slog.Int("shipped", result.Shipped), slog.Int("failed", result.Failed))
	if len(errs) > 0 {
		return result, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return result, nil
}

// performAction grants the days of a and marks it completed.
func (s *Service) performAction(ctx context.Context, memberID int, a models.TransactionAction) error {
	spanType, ok := a.Action.SpanType()
	if !ok {
		return fmt.Errorf("unknown action %q", a.Action)
	}
	_, err := s.granter.AddMembershipDays(ctx, models.AddDaysRequest{
		MemberID:       memberID,
		Type:           spanType,
		Days:           a.Value,
		CreationReason: fmt.Sprintf("transaction_action:%d", a.ID),
	})
	if err != nil {
		return err
	}
	if err := s.store.CompleteAction(ctx, a.ID); err != nil {
		return err
	}
	s.metrics.ActionShipped(string(a.Action))
	return nil
}

// History returns the member's transactions, newest first.
func (s *Service) History(ctx context.Context, memberID int) ([]models.Transaction, error) {
	const op = "shop.History"

	history, err := s.store.TransactionHistory(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return history, nil
}

// Receipt returns a transaction of the member. Transactions of other members are reported
// as not found.
func (s *Service) Receipt(ctx context.Context, memberID, transactionID int) (models.Receipt, error) {
	const op = "shop.Receipt"

	t, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	if t.MemberID != memberID {
		return models.Receipt{}, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	m, err := s.members.Get(ctx, memberID)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.Receipt{Member: *m, Transaction: *t, Cart: t.Contents}, nil
}
