package paymentprovider

// CreatePaymentRequest asks the provider to start a card payment. Amount is in minor units.
type CreatePaymentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	ReturnURL   string            `json:"return_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreatePaymentResponse is the provider's answer. The payer continues at RedirectURL.
type CreatePaymentResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
