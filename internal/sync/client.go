package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// TransportError marks a failure below the HTTP layer. It is expected
// and recoverable: the reconciler flips offline and queues the write
// instead of surfacing it.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is a transport-layer failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// APIError is a structured rejection from the server. The reconciler
// keys replay decisions off Code, not message text.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server rejected request with status %d", e.Status)
}

// envelope mirrors the uniform response body of every server endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// APIClient talks to the rental server. It owns no retry policy; the
// reconciler decides what to do with failures.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient creates a client for the server at baseURL authenticated
// with the given bearer token.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health probes the server's health endpoint. A nil return means the
// server answered ok within the probe timeout.
func (c *APIClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.do(ctx, http.MethodGet, "/api/health", nil, "")
	return err
}

// CreateRental posts a new rental. The idempotency key makes the call
// safe to replay after a crash between server ack and queue removal.
func (c *APIClient) CreateRental(ctx context.Context, payload json.RawMessage, idempotencyKey string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/rentals", payload, idempotencyKey)
}

func (c *APIClient) UpdateRental(ctx context.Context, id int64, payload json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/rentals/%d", id), payload, "")
}

func (c *APIClient) CancelRental(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rentals/%d/cancel", id), nil, "")
	return err
}

func (c *APIClient) CreateGarment(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/garments", payload, "")
}

func (c *APIClient) UpdateGarment(ctx context.Context, id int64, payload json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/garments/%d", id), payload, "")
}

func (c *APIClient) DeleteGarment(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/garments/%d", id), nil, "")
	return err
}

func (c *APIClient) CreateClient(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/clients", payload, "")
}

func (c *APIClient) UpdateClient(ctx context.Context, id int64, payload json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/clients/%d", id), payload, "")
}

func (c *APIClient) DeleteClient(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/clients/%d", id), nil, "")
	return err
}

// FetchActiveRentals pulls the active rental listing for mirror
// reconciliation.
func (c *APIClient) FetchActiveRentals(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/rentals/active", nil, "")
}

func (c *APIClient) FetchGarments(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/garments?limit=1000", nil, "")
}

func (c *APIClient) FetchClients(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/clients?limit=1000", nil, "")
}

func (c *APIClient) do(ctx context.Context, method, path string, body json.RawMessage, idempotencyKey string) (json.RawMessage, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("malformed response: %w", err)}
	}
	if !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Error, Message: env.Message}
	}
	return env.Data, nil
}
