// Package habiapi is the thin HTTP client for the remote Habi backend.
// The backend is authoritative for accounts, coins, and ownership; this
// package only speaks its wire contracts.
package habiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/habi/habi-go/internal/model"
)

var (
	// ErrUnauthorized signals an expired or missing session (HTTP 401).
	// Callers must clear local credentials and force re-authentication.
	ErrUnauthorized = errors.New("session expired or unauthorized")
)

// APIError carries a non-2xx, non-401 response's detail message.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Detail) != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Client calls the remote Habi API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for all requests. This is how
// the gateway transport is injected in front of API traffic.
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) { c.httpc = httpc }
}

// NewClient creates a client for the API served at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (model.AuthResponse, error) {
	var resp model.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/login", "", model.LoginRequest{Username: username, Password: password}, &resp)
	return resp, err
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, password string) (model.AuthResponse, error) {
	var resp model.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/register", "", model.RegisterRequest{Username: username, Password: password}, &resp)
	return resp, err
}

// Profile returns the authenticated user's profile.
func (c *Client) Profile(ctx context.Context, token string) (model.Profile, error) {
	var resp model.Profile
	err := c.do(ctx, http.MethodGet, "/api/profile", token, nil, &resp)
	return resp, err
}

// Coins returns the authenticated user's coin balance.
func (c *Client) Coins(ctx context.Context, token string) (int64, error) {
	var resp struct {
		Coins int64 `json:"coins"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/coins", token, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Coins, nil
}

// ownedResponse mirrors the owned-clothing wire contract.
type ownedResponse struct {
	OwnedClothingIDs  []int64 `json:"owned_clothing_ids"`
	CurrentClothingID *int64  `json:"current_clothing_id"`
}

// Owned returns the server-held owned set and active item for the user.
func (c *Client) Owned(ctx context.Context, token string) ([]int64, *int64, error) {
	var resp ownedResponse
	if err := c.do(ctx, http.MethodGet, "/api/clothing/owned", token, nil, &resp); err != nil {
		return nil, nil, err
	}
	if resp.OwnedClothingIDs == nil {
		resp.OwnedClothingIDs = []int64{}
	}
	return resp.OwnedClothingIDs, resp.CurrentClothingID, nil
}

// Wear marks the given item as the user's active cosmetic.
func (c *Client) Wear(ctx context.Context, token string, itemID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/clothing/wear/%d", itemID), token, nil, nil)
}

// Purchase buys the given item and returns the server's receipt.
func (c *Client) Purchase(ctx context.Context, token string, itemID int64) (model.PurchaseReceipt, error) {
	var resp model.PurchaseReceipt
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/clothing/purchase/%d", itemID), token, nil, &resp)
	return resp, err
}

// do performs one API round-trip: encode the optional body, attach the
// bearer token, and decode the JSON response or map the failure.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: decodeDetail(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeDetail extracts the {"detail": ...} message non-2xx responses carry.
func decodeDetail(body io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Detail
}
