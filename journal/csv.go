package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// ExportTradesCSV writes every trade to a CSV file for offline review.
func ExportTradesCSV(l Ledger, path string) error {
	trades, err := l.AllTrades()
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"id", "symbol", "security_id", "entry_price", "stop_price",
		"position_size", "confidence", "status", "entry_date",
		"buy_order_id", "stop_order_id",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.ID, t.Symbol, t.SecurityID,
			formatFloat(t.EntryPrice), formatFloat(t.StopPrice),
			formatFloat(t.PositionSize), formatFloat(t.Confidence),
			t.Status, t.EntryDate, t.BuyOrderID, t.StopOrderID,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ExportEquityCSV writes the equity history to a CSV file.
func ExportEquityCSV(l Ledger, path string) error {
	points, err := l.EquityHistory()
	if err != nil {
		return fmt.Errorf("load equity history: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create equity csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "equity"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := w.Write([]string{p.Date, formatFloat(p.Equity)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
