package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VenueOrder is a single swap order handed to a venue.
type VenueOrder struct {
	ClientOrderID    string  `json:"client_order_id"`
	Side             Side    `json:"side"`
	Address          string  `json:"mint"`
	NotionalUSD      float64 `json:"notional_usd,omitempty"` // buys
	TokenQty         float64 `json:"token_qty,omitempty"`    // sells
	ExpectedPriceUSD float64 `json:"expected_price_usd"`
	PriorityFeeMicro uint64  `json:"priority_fee_micro_lamports,omitempty"`
}

// VenueFill is a venue's confirmation of an executed order.
type VenueFill struct {
	OrderID     string  `json:"order_id"`
	PriceUSD    float64 `json:"fill_price_usd"`
	TokenQty    float64 `json:"filled_qty"`
	TxSignature string  `json:"tx_signature"`
}

// VenueClient submits orders to an execution venue.
type VenueClient interface {
	// Submit executes an order. Errors are classified: retryable means
	// the caller may retry once, anything else is final.
	Submit(ctx context.Context, order VenueOrder) (*VenueFill, error)
	// Name identifies the venue for journaling.
	Name() string
}

// VenueError is a classified venue failure.
type VenueError struct {
	Op         string
	StatusCode int // zero for transport failures
	Message    string
	Retryable  bool
	Err        error
}

func (e *VenueError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("venue %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("venue %s: %s", e.Op, e.Message)
}

func (e *VenueError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient venue failure. Network
// faults, timeouts, 429 and 5xx are transient; venue rejections are not.
func IsRetryable(err error) bool {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// Default configuration values.
const (
	DefaultVenueTimeout = 10 * time.Second
	venueOrdersPath     = "/v1/orders"
)

// HTTPVenue implements VenueClient over a JSON HTTP API. It performs no
// retries of its own; the router owns the retry policy.
type HTTPVenue struct {
	endpoint string
	apiKey   string
	client   *http.Client
	name     string
}

// VenueOption configures HTTPVenue.
type VenueOption func(*HTTPVenue)

// WithVenueTimeout sets the HTTP client timeout.
func WithVenueTimeout(d time.Duration) VenueOption {
	return func(v *HTTPVenue) {
		v.client.Timeout = d
	}
}

// WithVenueHTTPClient sets a custom http.Client.
func WithVenueHTTPClient(client *http.Client) VenueOption {
	return func(v *HTTPVenue) {
		v.client = client
	}
}

// WithVenueAPIKey sets the bearer token sent with each order.
func WithVenueAPIKey(key string) VenueOption {
	return func(v *HTTPVenue) {
		v.apiKey = key
	}
}

// WithVenueName overrides the venue name used in fills and journals.
func WithVenueName(name string) VenueOption {
	return func(v *HTTPVenue) {
		v.name = name
	}
}

// NewHTTPVenue creates an HTTP venue client.
func NewHTTPVenue(endpoint string, opts ...VenueOption) *HTTPVenue {
	v := &HTTPVenue{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultVenueTimeout},
		name:     "venue",
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name identifies the venue for journaling.
func (v *HTTPVenue) Name() string { return v.name }

// venueResponse is the raw order response.
type venueResponse struct {
	VenueFill
	Status string `json:"status"` // filled | rejected
	Reason string `json:"reason,omitempty"`
}

// Submit executes an order against the venue's order endpoint.
func (v *HTTPVenue) Submit(ctx context.Context, order VenueOrder) (*VenueFill, error) {
	op := string(order.Side)

	body, err := json.Marshal(order)
	if err != nil {
		return nil, &VenueError{Op: op, Message: "marshal order", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint+venueOrdersPath, bytes.NewReader(body))
	if err != nil {
		return nil, &VenueError{Op: op, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, &VenueError{Op: op, Message: err.Error(), Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &VenueError{Op: op, Message: "read response", Retryable: true, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &VenueError{Op: op, StatusCode: resp.StatusCode, Message: string(respBody), Retryable: true}
	case resp.StatusCode != http.StatusOK:
		return nil, &VenueError{Op: op, StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var vr venueResponse
	if err := json.Unmarshal(respBody, &vr); err != nil {
		return nil, &VenueError{Op: op, Message: "unmarshal response", Err: err}
	}

	if vr.Status != "filled" {
		// Venue-level rejections are final.
		return nil, &VenueError{Op: op, Message: fmt.Sprintf("order %s: %s", vr.Status, vr.Reason)}
	}

	fill := vr.VenueFill
	return &fill, nil
}
