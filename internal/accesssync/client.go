package accesssync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/makerspace/makeradmin/internal/models"
)

// Client is the MakerAdmin side of the sync.
type Client interface {
	IsLoggedIn() bool
	Login(ctx context.Context) error
	ShipOrders(ctx context.Context, ui UI) error
	FetchMembers(ctx context.Context, ui UI) ([]models.AccessMember, error)
}

// envelope is the JSON body of every MakerAdmin response.
type envelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

// MakerAdminClient talks to the MakerAdmin API. Members can be read from a file in the
// format of the memberdata response instead.
type MakerAdminClient struct {
	baseURL     string
	token       string
	membersFile string
	ui          UI
	httpClient  *http.Client
}

// NewMakerAdminClient returns a client for baseURL. An empty token means the operator is
// asked for credentials on Login.
func NewMakerAdminClient(baseURL, token, membersFile string, ui UI) *MakerAdminClient {
	return &MakerAdminClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		membersFile: membersFile,
		ui:          ui,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *MakerAdminClient) IsLoggedIn() bool {
	return c.token != ""
}

// Login asks the operator for credentials and exchanges them for a token.
func (c *MakerAdminClient) Login(ctx context.Context) error {
	const op = "accesssync.Login"

	email, password, err := c.ui.Credentials()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/login",
		models.LoginRequest{Email: email, Password: password}, &token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.token = token.AccessToken
	c.ui.Info("logged in as " + email)
	return nil
}

// ShipOrders asks MakerAdmin to grant pending lab access before members are fetched.
func (c *MakerAdminClient) ShipOrders(ctx context.Context, ui UI) error {
	const op = "accesssync.ShipOrders"

	ui.Progress("shipping orders")
	var res models.ShipResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/webshop/ship_orders", nil, &res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ui.Info(fmt.Sprintf("shipped %d orders, %d failed", res.Shipped, res.Failed))
	return nil
}

// FetchMembers returns the members relevant to access control.
func (c *MakerAdminClient) FetchMembers(ctx context.Context, ui UI) ([]models.AccessMember, error) {
	const op = "accesssync.FetchMembers"

	var members []models.AccessMember
	if c.membersFile != "" {
		ui.Progress("reading members from " + c.membersFile)
		raw, err := os.ReadFile(c.membersFile)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := decodeMembers(raw, &members); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, c.membersFile, err)
		}
		return members, nil
	}

	ui.Progress("fetching members from " + c.baseURL)
	if err := c.do(ctx, http.MethodGet, "/api/v1/multiaccess/memberdata", nil, &members); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ui.Info(fmt.Sprintf("fetched %d members", len(members)))
	return members, nil
}

// decodeMembers accepts a saved memberdata response or a bare member list.
func decodeMembers(raw []byte, members *[]models.AccessMember) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
		return json.Unmarshal(env.Data, members)
	}
	return json.Unmarshal(raw, members)
}

// do sends body as JSON and decodes the data of the response envelope into out. A 401
// forgets the token so that the next sync logs in again.
func (c *MakerAdminClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.token = ""
		return fmt.Errorf("%s %s: %s: %w", method, path, env.Error, models.ErrUnauthorized)
	case resp.StatusCode >= 300:
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, env.Error)
	}
	if out == nil || env.Data == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// IsUnauthorized reports whether err was a rejected token or password.
func IsUnauthorized(err error) bool {
	return errors.Is(err, models.ErrUnauthorized)
}
