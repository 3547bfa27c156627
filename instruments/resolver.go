// Package instruments maps trading symbols to broker security IDs using
// the exchange scrip-master feed. Column names in the feed drift across
// versions, so parsing probes a prioritized candidate list per field
// instead of assuming a fixed header.
package instruments

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Column candidates, most recent feed version first.
var (
	symbolColumns   = []string{"SEM_TRADING_SYMBOL", "SM_SYMBOL_NAME", "TRADING_SYMBOL", "SYMBOL_NAME"}
	securityColumns = []string{"SEM_SMST_SECURITY_ID", "SEM_SECURITY_ID", "SECURITY_ID"}
	exchangeColumns = []string{"SEM_EXM_EXCH_ID", "EXCH_ID", "EXCHANGE"}
	seriesColumns   = []string{"SEM_SERIES", "SERIES"}
)

const (
	cashExchange = "NSE"
	cashSeries   = "EQ"
)

// SymbolMap holds the symbol to security-id mapping. A symbol may alias
// multiple IDs (duplicate listings); all are retained in feed order and
// downstream selection keeps whichever ID yields enough history.
type SymbolMap struct {
	byKey map[string][]string
}

// NewSymbolMap builds a map from raw symbol -> ids pairs, indexing every
// key variant for each symbol. Used directly by tests and by ParseCSV.
func NewSymbolMap() *SymbolMap {
	return &SymbolMap{byKey: make(map[string][]string)}
}

// Add registers one security ID under every lookup variant of symbol.
func (m *SymbolMap) Add(symbol, securityID string) {
	symbol = strings.TrimSpace(symbol)
	securityID = strings.TrimSpace(securityID)
	if symbol == "" || securityID == "" {
		return
	}

	upper := strings.ToUpper(symbol)
	for _, key := range dedupe([]string{symbol, upper, strings.TrimSuffix(upper, "-EQ"), Canonical(symbol)}) {
		ids := m.byKey[key]
		if !contains(ids, securityID) {
			m.byKey[key] = append(ids, securityID)
		}
	}
}

// Resolve returns candidate security IDs for symbol, ordered by
// closeness to the canonical trading symbol: exact match first, then
// upper-cased, then the exchange-suffixed form, then the canonicalized
// form. Duplicates across variants are collapsed keeping first position.
// Resolution is deterministic for an unchanged feed.
func (m *SymbolMap) Resolve(symbol string) []string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	keys := dedupe([]string{symbol, upper, upper + "-EQ", Canonical(symbol)})

	var ids []string
	for _, key := range keys {
		for _, id := range m.byKey[key] {
			if !contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Len returns the number of distinct lookup keys.
func (m *SymbolMap) Len() int {
	return len(m.byKey)
}

// Canonical normalizes a symbol for fuzzy matching: upper-cased, the
// "-EQ" exchange suffix stripped, non-alphanumerics removed.
func Canonical(symbol string) string {
	text := strings.ToUpper(strings.TrimSpace(symbol))
	text = strings.TrimSuffix(text, "-EQ")
	var b strings.Builder
	for _, r := range text {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// columnProbe is one named-field lookup strategy: the first candidate
// present in the header wins.
type columnProbe struct {
	field      string
	candidates []string
	required   bool
}

// ParseCSV reads a scrip-master table and builds the symbol map. Rows
// are filtered to the cash-equity exchange and series when those columns
// exist. A feed with no recognizable symbol or security-id column yields
// an empty map, not an error: the caller proceeds with zero scan
// coverage and the tried candidates are logged for debugging.
func ParseCSV(r io.Reader, log zerolog.Logger) (*SymbolMap, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read scrip master header: %w", err)
	}

	probes := []columnProbe{
		{field: "symbol", candidates: symbolColumns, required: true},
		{field: "security_id", candidates: securityColumns, required: true},
		{field: "exchange", candidates: exchangeColumns},
		{field: "series", candidates: seriesColumns},
	}

	cols := make(map[string]int, len(probes))
	for _, p := range probes {
		idx, ok := probeHeader(header, p.candidates)
		if !ok {
			if p.required {
				log.Warn().
					Str("field", p.field).
					Strs("tried", p.candidates).
					Msg("scrip master missing required column, mapping will be empty")
				return NewSymbolMap(), nil
			}
			continue
		}
		cols[p.field] = idx
	}

	m := NewSymbolMap()
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row: skip, keep parsing the rest of the feed.
			continue
		}

		if idx, ok := cols["exchange"]; ok && !fieldEquals(record, idx, cashExchange) {
			continue
		}
		if idx, ok := cols["series"]; ok && !fieldEquals(record, idx, cashSeries) {
			continue
		}

		symIdx, idIdx := cols["symbol"], cols["security_id"]
		if symIdx >= len(record) || idIdx >= len(record) {
			continue
		}
		m.Add(record[symIdx], record[idIdx])
		rows++
	}

	log.Debug().Int("rows", rows).Int("keys", m.Len()).Msg("scrip master parsed")
	return m, nil
}

func probeHeader(header []string, candidates []string) (int, bool) {
	for _, want := range candidates {
		for i, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), want) {
				return i, true
			}
		}
	}
	return 0, false
}

func fieldEquals(record []string, idx int, want string) bool {
	return idx < len(record) && strings.EqualFold(strings.TrimSpace(record[idx]), want)
}

func dedupe(keys []string) []string {
	var out []string
	for _, k := range keys {
		if k != "" && !contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
