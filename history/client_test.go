package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{"data": {"candles": [[1704067200, 100, 105, 99, 104, 50000]]}}`

func TestClientNegotiatesEndpoint(t *testing.T) {
	t.Parallel()

	var v2Hits, v1Hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/charts/historical":
			v2Hits++
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errorType": "Invalid_Request"}`))
		case "/charts/historical/daily":
			v1Hits++
			w.Write([]byte(validPayload))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "token", 5*time.Second, zerolog.Nop())

	series, err := c.Fetch(context.Background(), "11536", "2023-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, 1, v2Hits)
	assert.Equal(t, 1, v1Hits)

	// Second fetch goes straight to the negotiated endpoint.
	_, err = c.Fetch(context.Background(), "11536", "2023-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 1, v2Hits)
	assert.Equal(t, 2, v1Hits)
}

func TestClientNoCompatibleEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "token", 5*time.Second, zerolog.Nop())

	_, err := c.Fetch(context.Background(), "11536", "2023-01-01", "2024-01-01")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCompatibleEndpoint)
}

func TestClientBreakerOpensOnServerErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "token", 5*time.Second, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := c.Fetch(context.Background(), "11536", "2023-01-01", "2024-01-01")
		require.Error(t, err)
	}

	// Breaker is open now; the failure is immediate, not a timeout.
	start := time.Now()
	_, err := c.Fetch(context.Background(), "11536", "2023-01-01", "2024-01-01")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
