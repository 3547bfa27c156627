// Package broker defines the order gateway contract and the shared
// stop-order placement policy.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType selects the execution style.
type OrderType string

const (
	Market    OrderType = "MARKET"
	Stop      OrderType = "STOP"       // stop-market
	StopLimit OrderType = "STOP_LIMIT" // stop with a limit price
)

// ErrUnsupportedOrderType signals that the gateway cannot place the
// requested order type; callers may fall back to another type.
var ErrUnsupportedOrderType = errors.New("unsupported order type")

// OrderRequest is one order to place. Price is the limit price (limit
// variants only); TriggerPrice arms stop variants.
type OrderRequest struct {
	SecurityID   string
	Side         Side
	Quantity     int
	Type         OrderType
	ProductType  string
	Price        float64
	TriggerPrice float64
}

// Gateway places and modifies broker orders. Implementations must
// report placement failures with the underlying cause, never swallow
// them.
type Gateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
	ModifyOrder(ctx context.Context, orderID string, req OrderRequest) error
}

// PlaceStopLoss places protection for a long position: a sell
// stop-market at trigger, falling back to a sell stop-limit with the
// limit one tick below the trigger on gateways that reject stop-market.
func PlaceStopLoss(ctx context.Context, gw Gateway, securityID, productType string, quantity int, trigger, tickSize float64) (string, error) {
	req := OrderRequest{
		SecurityID:   securityID,
		Side:         Sell,
		Quantity:     quantity,
		Type:         Stop,
		ProductType:  productType,
		TriggerPrice: trigger,
	}

	orderID, err := gw.PlaceOrder(ctx, req)
	if err == nil {
		return orderID, nil
	}
	if !errors.Is(err, ErrUnsupportedOrderType) {
		return "", fmt.Errorf("place stop-market: %w", err)
	}

	req.Type = StopLimit
	req.Price = OneTickBelow(trigger, tickSize)
	orderID, err = gw.PlaceOrder(ctx, req)
	if err != nil {
		return "", fmt.Errorf("place stop-limit fallback: %w", err)
	}
	return orderID, nil
}

// OneTickBelow returns the trigger price minus one tick, computed in
// decimal so repeated float arithmetic cannot drift the limit off the
// exchange tick grid.
func OneTickBelow(trigger, tickSize float64) float64 {
	t := decimal.NewFromFloat(trigger)
	tick := decimal.NewFromFloat(tickSize)
	if tick.IsZero() {
		return trigger
	}
	// Snap to the grid first; a mid-tick trigger rounds down.
	ticks := t.Div(tick).Floor()
	out, _ := ticks.Mul(tick).Sub(tick).Float64()
	return out
}
