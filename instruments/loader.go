package instruments

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ScripMasterURL is the published scrip-master feed for the detailed
// format; the compact format is kept as a fallback because the broker
// has switched formats between API versions.
var ScripMasterURLs = []string{
	"https://images.dhan.co/api-data/api-scrip-master-detailed.csv",
	"https://images.dhan.co/api-data/api-scrip-master.csv",
}

// Loader downloads and parses the scrip-master feed.
type Loader struct {
	client *resty.Client
	urls   []string
	log    zerolog.Logger
}

// NewLoader builds a Loader. Empty urls falls back to the published
// feed locations.
func NewLoader(urls []string, timeout time.Duration, log zerolog.Logger) *Loader {
	if len(urls) == 0 {
		urls = ScripMasterURLs
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		client: resty.New().SetTimeout(timeout),
		urls:   urls,
		log:    log,
	}
}

// Load fetches the first feed URL that parses into a non-empty map.
// Total failure returns an empty map and the last error: zero scan
// coverage is a degraded state, not a fatal one, so callers may ignore
// the error after logging it.
func (l *Loader) Load(ctx context.Context) (*SymbolMap, error) {
	var lastErr error
	for _, url := range l.urls {
		resp, err := l.client.R().SetContext(ctx).Get(url)
		if err != nil {
			lastErr = fmt.Errorf("fetch scrip master %s: %w", url, err)
			l.log.Warn().Err(err).Str("url", url).Msg("scrip master fetch failed")
			continue
		}
		if resp.StatusCode() != 200 {
			lastErr = fmt.Errorf("fetch scrip master %s: status %d", url, resp.StatusCode())
			l.log.Warn().Int("status", resp.StatusCode()).Str("url", url).Msg("scrip master fetch failed")
			continue
		}

		m, err := ParseCSV(strings.NewReader(string(resp.Body())), l.log)
		if err != nil {
			lastErr = err
			continue
		}
		if m.Len() > 0 {
			l.log.Info().Str("url", url).Int("keys", m.Len()).Msg("scrip master loaded")
			return m, nil
		}
		lastErr = fmt.Errorf("scrip master %s: no usable rows", url)
	}

	l.log.Error().Err(lastErr).Strs("urls", l.urls).Msg("all scrip master sources failed")
	return NewSymbolMap(), lastErr
}

// LoadFile parses a local scrip-master CSV, useful for offline runs and
// tests.
func LoadFile(path string, log zerolog.Logger) (*SymbolMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scrip master: %w", err)
	}
	defer f.Close()
	return ParseCSV(f, log)
}
