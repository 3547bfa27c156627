// Package dhan implements the broker gateway over the Dhan HTTP API.
package dhan

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/safealpha/engine/broker"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.dhan.co"

const exchangeSegment = "NSE_EQ"

// orderTypes maps the gateway order types onto the API's names.
// Stop-market support depends on the account's product configuration,
// so STOP may come back rejected and the caller falls back.
var orderTypes = map[broker.OrderType]string{
	broker.Market:    "MARKET",
	broker.Stop:      "STOP_LOSS_MARKET",
	broker.StopLimit: "STOP_LOSS",
}

// Client is the live order gateway.
type Client struct {
	http     *resty.Client
	clientID string
	log      zerolog.Logger
	entropy  *ulid.MonotonicEntropy
}

var _ broker.Gateway = (*Client)(nil)

// NewClient builds a Client. clientID and accessToken come from the
// broker account.
func NewClient(baseURL, clientID, accessToken string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("access-token", accessToken),
		clientID: clientID,
		log:      log,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

type orderResponse struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
	ErrorType   string `json:"errorType"`
	ErrorMsg    string `json:"errorMessage"`
}

// PlaceOrder submits one order. Failures carry the API's error message;
// a rejected stop-market maps to broker.ErrUnsupportedOrderType so the
// shared fallback can take over.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (string, error) {
	apiType, ok := orderTypes[req.Type]
	if !ok {
		return "", fmt.Errorf("%w: %s", broker.ErrUnsupportedOrderType, req.Type)
	}

	body := map[string]any{
		"dhanClientId":    c.clientID,
		"correlationId":   ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String(),
		"transactionType": string(req.Side),
		"exchangeSegment": exchangeSegment,
		"productType":     req.ProductType,
		"orderType":       apiType,
		"securityId":      req.SecurityID,
		"quantity":        req.Quantity,
	}
	if req.Price > 0 {
		body["price"] = req.Price
	}
	if req.TriggerPrice > 0 {
		body["triggerPrice"] = req.TriggerPrice
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/v2/orders")
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}

	var out orderResponse
	if uerr := json.Unmarshal(resp.Body(), &out); uerr != nil {
		return "", fmt.Errorf("place order: status %d, unreadable response", resp.StatusCode())
	}

	if resp.StatusCode() != 200 || out.OrderID == "" {
		if req.Type == broker.Stop && out.ErrorType == "Order_Error" {
			return "", fmt.Errorf("%w: %s", broker.ErrUnsupportedOrderType, out.ErrorMsg)
		}
		return "", fmt.Errorf("place order rejected: status %d, %s %s",
			resp.StatusCode(), out.ErrorType, out.ErrorMsg)
	}

	c.log.Info().
		Str("order_id", out.OrderID).
		Str("security_id", req.SecurityID).
		Str("side", string(req.Side)).
		Str("type", apiType).
		Int("quantity", req.Quantity).
		Msg("order placed")
	return out.OrderID, nil
}

// ModifyOrder updates the trigger and limit price of a pending order,
// used to ratchet stop-loss orders.
func (c *Client) ModifyOrder(ctx context.Context, orderID string, req broker.OrderRequest) error {
	apiType, ok := orderTypes[req.Type]
	if !ok {
		return fmt.Errorf("%w: %s", broker.ErrUnsupportedOrderType, req.Type)
	}

	body := map[string]any{
		"dhanClientId": c.clientID,
		"orderId":      orderID,
		"orderType":    apiType,
		"quantity":     req.Quantity,
	}
	if req.Price > 0 {
		body["price"] = req.Price
	}
	if req.TriggerPrice > 0 {
		body["triggerPrice"] = req.TriggerPrice
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Put("/v2/orders/" + orderID)
	if err != nil {
		return fmt.Errorf("modify order %s: %w", orderID, err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("modify order %s rejected: status %d: %s",
			orderID, resp.StatusCode(), resp.Body())
	}
	return nil
}
