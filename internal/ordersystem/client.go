// Package ordersystem is the HTTP client used to push status confirmations
// back into the order system of record.
package ordersystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/logitrack/services/warehouse/config"
)

// StatusUpdate is the body of a status confirmation
type StatusUpdate struct {
	NewStatus       string `json:"newStatus"`
	StatusChangedBy string `json:"statusChangedBy"`
	ChangeReason    string `json:"changeReason"`
	Location        string `json:"location,omitempty"`
}

// Order is the order system's representation of an order
type Order struct {
	OrderID        string `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	TrackingNumber string `json:"trackingNumber"`
	Status         string `json:"status"`
	SenderName     string `json:"senderName"`
	ReceiverName   string `json:"receiverName"`
}

// HTTPError carries the upstream status code of a failed call
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("order system returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the order system HTTP API. It owns a single 10s timeout and
// does not retry internally; retries are left to the orchestration layer.
type Client interface {
	UpdateOrderStatus(ctx context.Context, orderID string, update StatusUpdate) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	TestConnection(ctx context.Context) error
}

type client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an order system client
func NewClient(cfg config.OrderSystemConfig) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UpdateOrderStatus confirms a status change via PATCH /orders/{orderId}/status
func (c *client) UpdateOrderStatus(ctx context.Context, orderID string, update StatusUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return errors.Wrap(err, "failed to marshal status update")
	}

	url := fmt.Sprintf("%s/orders/%s/status", c.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build status update request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "order system request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.httpError(resp)
	}

	log.Info().
		Str("order_id", orderID).
		Str("new_status", update.NewStatus).
		Msg("Order status confirmed in order system")

	return nil
}

// GetOrder fetches an order via GET /orders/order/{orderId}
func (c *client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	url := fmt.Sprintf("%s/orders/order/%s", c.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build get order request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "order system request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.httpError(resp)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, errors.Wrap(err, "failed to decode order response")
	}

	return &order, nil
}

// TestConnection checks the order system health endpoint
func (c *client) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "failed to build health request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "order system is unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.httpError(resp)
	}
	return nil
}

func (c *client) httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
