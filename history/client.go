package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/safealpha/engine/market"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.dhan.co"

// ErrNoCompatibleEndpoint is returned when every known endpoint
// generation rejects the request shape.
var ErrNoCompatibleEndpoint = errors.New("no compatible historical data endpoint")

// Fetcher retrieves a normalized candle series for a security. Fetch
// failures are per-symbol: callers log and continue with the next
// symbol, never abort the batch.
type Fetcher interface {
	Fetch(ctx context.Context, securityID, fromDate, toDate string) (market.Series, error)
}

// endpointStrategy is one generation of the historical-candles API.
// Strategies are tried in priority order and the first structurally
// valid responder is remembered for the rest of the process, mirroring
// how client libraries probe method names across versions.
type endpointStrategy struct {
	name string
	path string
	body func(securityID, fromDate, toDate string) map[string]any
}

var strategies = []endpointStrategy{
	{
		name: "charts_v2",
		path: "/v2/charts/historical",
		body: func(securityID, fromDate, toDate string) map[string]any {
			return map[string]any{
				"securityId":      securityID,
				"exchangeSegment": "NSE_EQ",
				"instrument":      "EQUITY",
				"fromDate":        fromDate,
				"toDate":          toDate,
			}
		},
	},
	{
		name: "charts_daily_v1",
		path: "/charts/historical/daily",
		body: func(securityID, fromDate, toDate string) map[string]any {
			return map[string]any{
				"security_id":      securityID,
				"exchange_segment": "NSE_EQ",
				"instrument_type":  "EQUITY",
				"from_date":        fromDate,
				"to_date":          toDate,
			}
		},
	},
}

// Client talks to the broker's historical data API. A circuit breaker
// short-circuits calls after repeated transport failures so a dead API
// does not stall every symbol in a batch for the full timeout.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger

	// Index of the negotiated strategy, -1 until the first success.
	// The engine is single-threaded per §concurrency model; concurrent
	// callers would need to serialize this.
	negotiated int
}

// NewClient builds a Client. accessToken is the broker API token;
// baseURL is overridable for tests.
func NewClient(baseURL, accessToken string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("access-token", accessToken)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "history-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("history breaker state change")
		},
	})

	return &Client{
		http:       httpClient,
		breaker:    breaker,
		log:        log,
		negotiated: -1,
	}
}

var _ Fetcher = (*Client)(nil)

// Fetch retrieves daily candles for securityID in [fromDate, toDate]
// (ISO dates). It negotiates the endpoint generation on first use: a
// response that does not normalize into a recognizable candle payload
// advances to the next strategy; transport failures do not, since they
// say nothing about the shape.
func (c *Client) Fetch(ctx context.Context, securityID, fromDate, toDate string) (market.Series, error) {
	start := 0
	if c.negotiated >= 0 {
		start = c.negotiated
	}

	var lastErr error
	for offset := 0; offset < len(strategies); offset++ {
		idx := (start + offset) % len(strategies)
		strat := strategies[idx]

		raw, err := c.post(ctx, strat.path, strat.body(securityID, fromDate, toDate))
		if err != nil {
			return nil, fmt.Errorf("fetch history %s: %w", securityID, err)
		}

		series, ok := Normalize(raw)
		if !ok {
			lastErr = fmt.Errorf("endpoint %s: unrecognizable payload", strat.name)
			c.log.Debug().Str("endpoint", strat.name).Str("security_id", securityID).
				Msg("payload shape not recognized, trying next endpoint")
			continue
		}

		if c.negotiated != idx {
			c.log.Info().Str("endpoint", strat.name).Msg("historical endpoint negotiated")
			c.negotiated = idx
		}
		return series, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrNoCompatibleEndpoint, lastErr)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 500 {
			return nil, fmt.Errorf("status %d", resp.StatusCode())
		}
		return resp.Body(), nil
	})
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(result.([]byte), &raw); err != nil {
		// Not a transport failure: let negotiation try the next shape.
		return map[string]any{}, nil
	}
	return raw, nil
}
