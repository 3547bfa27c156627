// Package sim is an in-memory paper gateway: orders are recorded, never
// routed. It is the default gateway and the one tests run against.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/safealpha/engine/broker"
)

// Gateway implements broker.Gateway in memory.
type Gateway struct {
	mu     sync.Mutex
	seq    int
	orders []PlacedOrder

	// RejectStopMarket makes stop-market orders fail with
	// ErrUnsupportedOrderType, exercising the stop-limit fallback.
	RejectStopMarket bool

	// FailAll makes every placement fail, for failure-path tests.
	FailAll bool
}

// PlacedOrder is one recorded order.
type PlacedOrder struct {
	ID  string
	Req broker.OrderRequest
}

var _ broker.Gateway = (*Gateway)(nil)

// New builds an empty paper gateway.
func New() *Gateway {
	return &Gateway{}
}

func (g *Gateway) PlaceOrder(_ context.Context, req broker.OrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailAll {
		return "", fmt.Errorf("paper gateway configured to fail")
	}
	if g.RejectStopMarket && req.Type == broker.Stop {
		return "", fmt.Errorf("%w: stop-market disabled", broker.ErrUnsupportedOrderType)
	}
	if req.Quantity <= 0 {
		return "", fmt.Errorf("quantity must be positive, got %d", req.Quantity)
	}

	g.seq++
	id := fmt.Sprintf("SIM-%04d", g.seq)
	g.orders = append(g.orders, PlacedOrder{ID: id, Req: req})
	return id, nil
}

func (g *Gateway) ModifyOrder(_ context.Context, orderID string, req broker.OrderRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, o := range g.orders {
		if o.ID == orderID {
			g.orders[i].Req = req
			return nil
		}
	}
	return fmt.Errorf("order %s not found", orderID)
}

// Orders returns a copy of everything placed so far.
func (g *Gateway) Orders() []PlacedOrder {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]PlacedOrder, len(g.orders))
	copy(out, g.orders)
	return out
}
