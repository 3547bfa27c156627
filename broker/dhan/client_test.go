package dhan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safealpha/engine/broker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "client-1", "token", 5*time.Second, zerolog.Nop())
}

func TestPlaceOrderSuccess(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"orderId": "112111182198", "orderStatus": "PENDING"}`))
	})

	id, err := c.PlaceOrder(context.Background(), broker.OrderRequest{
		SecurityID:  "11536",
		Side:        broker.Buy,
		Quantity:    20,
		Type:        broker.Market,
		ProductType: "CNC",
	})
	require.NoError(t, err)
	assert.Equal(t, "112111182198", id)

	assert.Equal(t, "BUY", got["transactionType"])
	assert.Equal(t, "MARKET", got["orderType"])
	assert.Equal(t, "NSE_EQ", got["exchangeSegment"])
	assert.NotEmpty(t, got["correlationId"])
}

func TestPlaceOrderRejectionCarriesCause(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorType": "Input_Exception", "errorMessage": "invalid quantity"}`))
	})

	_, err := c.PlaceOrder(context.Background(), broker.OrderRequest{
		SecurityID: "11536", Side: broker.Buy, Quantity: 0, Type: broker.Market,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid quantity")
}

func TestPlaceOrderStopMarketRejectionMapsToUnsupported(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorType": "Order_Error", "errorMessage": "order type not enabled"}`))
	})

	_, err := c.PlaceOrder(context.Background(), broker.OrderRequest{
		SecurityID: "11536", Side: broker.Sell, Quantity: 20, Type: broker.Stop, TriggerPrice: 95,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrUnsupportedOrderType)
}

func TestModifyOrder(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/v2/orders/ORD-1", r.URL.Path)
		w.Write([]byte(`{"orderId": "ORD-1", "orderStatus": "TRANSIT"}`))
	})

	err := c.ModifyOrder(context.Background(), "ORD-1", broker.OrderRequest{
		Type: broker.StopLimit, Quantity: 20, TriggerPrice: 100, Price: 99.95,
	})
	assert.NoError(t, err)
}
