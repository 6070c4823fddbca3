package models

import "time"

// ActionName is the effect a product has when its transaction completes.
type ActionName string

// Product actions.
const (
	AddLabAccessDays  ActionName = "add_labaccess_days"
	AddMembershipDays ActionName = "add_membership_days"
)

// SpanType returns the span type the action grants.
func (a ActionName) SpanType() (SpanType, bool) {
	switch a {
	case AddLabAccessDays:
		return LabAccess, true
	case AddMembershipDays:
		return Membership, true
	}
	return "", false
}

// Transaction statuses.
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// Action statuses.
const (
	ActionPending   = "pending"
	ActionCompleted = "completed"
)

// DefaultProductImage is shown for products without an image.
const DefaultProductImage = "default_image.png"

// Category groups products in the shop.
type Category struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	DisplayOrder int       `json:"display_order"`
	Items        []Product `json:"items"`
}

// Product is an item for sale.
type Product struct {
	ID               int             `json:"id"`
	CategoryID       int             `json:"category_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Unit             string          `json:"unit"`
	Price            Money           `json:"price"`
	SmallestMultiple int             `json:"smallest_multiple"`
	DisplayOrder     int             `json:"display_order"`
	Image            string          `json:"image"`
	Actions          []ProductAction `json:"actions,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	DeletedAt        *time.Time      `json:"deleted_at,omitempty"`
}

// ProductAction attaches an action to a product; Value is days per unit bought.
type ProductAction struct {
	ID        int        `json:"id"`
	ProductID int        `json:"product_id"`
	Action    ActionName `json:"action" validate:"required,oneof=add_labaccess_days add_membership_days"`
	Value     int        `json:"value" validate:"gt=0"`
}

// CreateProductRequest is the payload for adding a product to the catalog.
type CreateProductRequest struct {
	CategoryID       int             `json:"category_id" validate:"required"`
	Name             string          `json:"name" validate:"required"`
	Description      string          `json:"description"`
	Unit             string          `json:"unit"`
	Price            Money           `json:"price" validate:"gte=0"`
	SmallestMultiple int             `json:"smallest_multiple" validate:"omitempty,gt=0"`
	DisplayOrder     int             `json:"display_order"`
	Image            string          `json:"image"`
	Actions          []ProductAction `json:"actions" validate:"dive"`
}

// CreateCategoryRequest is the payload for adding a product category.
type CreateCategoryRequest struct {
	Name         string `json:"name" validate:"required"`
	DisplayOrder int    `json:"display_order"`
}

// ShipResult reports what a shipping run did.
type ShipResult struct {
	Shipped int `json:"shipped"`
	Failed  int `json:"failed"`
}

// CartItem is one product line in a purchase.
type CartItem struct {
	ID    int `json:"id"`
	Count int `json:"count"`
}

// Purchase is what a member wants to buy. Cart rules are checked against the catalog
// when the purchase is priced.
type Purchase struct {
	Cart        []CartItem `json:"cart"`
	TotalAmount Money      `json:"total_amount"`
}

// RegisterRequest creates a member and buys a membership product in one go.
type RegisterRequest struct {
	Member   CreateMemberRequest `json:"member"`
	Purchase Purchase            `json:"purchase"`
}

// RegisterResult is returned after a successful registration.
type RegisterResult struct {
	TransactionID int    `json:"transaction_id"`
	Token         string `json:"token"`
	Redirect      string `json:"redirect"`
}

// PayResult is returned after a purchase was handed to the payment provider.
type PayResult struct {
	TransactionID int    `json:"transaction_id"`
	Redirect      string `json:"redirect"`
}

// Transaction is a purchase by a member.
type Transaction struct {
	ID               int                  `json:"id"`
	MemberID         int                  `json:"member_id"`
	Amount           Money                `json:"amount"`
	Status           string               `json:"status"`
	PaymentReference string               `json:"payment_reference,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	Contents         []TransactionContent `json:"contents,omitempty"`
}

// TransactionContent is one line of a transaction.
type TransactionContent struct {
	ID            int      `json:"id"`
	TransactionID int      `json:"transaction_id"`
	ProductID     int      `json:"product_id"`
	Count         int      `json:"count"`
	Amount        Money    `json:"amount"`
	Product       *Product `json:"product,omitempty"`
}

// TransactionAction is an action owed to a member for a completed transaction content.
// Value is the total number of days, product action value times count.
type TransactionAction struct {
	ID          int        `json:"id"`
	ContentID   int        `json:"content_id"`
	Action      ActionName `json:"action"`
	Value       int        `json:"value"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PendingAction is a not yet performed action together with its context.
type PendingAction struct {
	Item          TransactionContent `json:"item"`
	Action        TransactionAction  `json:"pending_action"`
	MemberID      int                `json:"member_id"`
	TransactionID int                `json:"transaction_id"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Receipt is a transaction as shown to the member who made it.
type Receipt struct {
	Member      Member               `json:"member"`
	Transaction Transaction          `json:"transaction"`
	Cart        []TransactionContent `json:"cart"`
}
