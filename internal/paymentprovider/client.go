// Package paymentprovider is a small client for the card payment provider used by the shop.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/makerspace/makeradmin/internal/config"
)

// Client talks to the provider's REST API with basic auth.
type Client struct {
	secretKey  string
	apiURL     string
	returnURL  string
	currency   string
	httpClient *http.Client
}

// NewClient creates a provider client.
func NewClient(cfg config.PaymentProvider) *Client {
	return &Client{
		secretKey:  cfg.SecretKey,
		apiURL:     cfg.APIURL,
		returnURL:  cfg.ReturnURL,
		currency:   cfg.Currency,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Currency is the currency payments are made in.
func (c *Client) Currency() string { return c.currency }

// ReturnURL is where the payer lands after paying.
func (c *Client) ReturnURL() string { return c.returnURL }

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.secretKey + ":"))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreatePayment starts a payment. idempotencyKey makes retries of the same request safe.
func (c *Client) CreatePayment(ctx context.Context, idempotencyKey string, reqParams CreatePaymentRequest) (*CreatePaymentResponse, error) {
	const op = "paymentprovider.CreatePayment"

	req, err := c.newRequest(ctx, http.MethodPost, "/payments", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var e errorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error.Message != "" {
			return nil, fmt.Errorf("%s: unexpected status %s: %s", op, resp.Status, e.Error.Message)
		}
		return nil, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var paymentResp CreatePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&paymentResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &paymentResp, nil
}
