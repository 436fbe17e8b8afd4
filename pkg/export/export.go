// Package export writes batch log records for external accounting tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/multisend/core/dispatch/logging"
)

var csvHeader = []string{
	"batch_id", "timestamp", "caller", "kind", "token", "status",
	"recipients", "successes", "attached_value", "total_value", "fee", "change", "error_code",
}

// WriteJSON writes records as a JSON array.
func WriteJSON(w io.Writer, recs []logging.LogRecord) error {
	if recs == nil {
		recs = []logging.LogRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// WriteCSV writes one row per batch. Per-recipient outcomes are not included.
func WriteCSV(w io.Writer, recs []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.BatchID,
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Caller,
			r.Kind,
			r.Token,
			r.Status,
			strconv.Itoa(r.Recipients),
			strconv.Itoa(r.Successes),
			r.AttachedValue,
			r.TotalValue,
			r.Fee,
			r.Change,
			r.ErrorCode,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format, which is "csv" or "json".
func Write(w io.Writer, format string, recs []logging.LogRecord) error {
	switch format {
	case "csv":
		return WriteCSV(w, recs)
	case "json", "":
		return WriteJSON(w, recs)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
