package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/holiman/uint256"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/multisend/core/dispatch/logging"
	"github.com/kilianp07/multisend/core/metrics"
	"github.com/kilianp07/multisend/core/model"
)

// Stat describes the distribution of one per-batch quantity.
type Stat struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
}

// Summary aggregates a set of batch records.
type Summary struct {
	Batches    int            `json:"batches"`
	First      time.Time      `json:"first,omitempty"`
	Last       time.Time      `json:"last,omitempty"`
	ByStatus   map[string]int `json:"by_status"`
	ByKind     map[string]int `json:"by_kind"`
	ErrorCodes map[string]int `json:"error_codes,omitempty"`

	// Distributions over committed batches only.
	Recipients  Stat `json:"recipients"`
	SuccessRate Stat `json:"success_rate"`
	Fee         Stat `json:"fee"`
	// Duration covers every batch, in milliseconds.
	Duration Stat `json:"duration_ms"`

	FeeTotal   string `json:"fee_total"`
	ValueTotal string `json:"value_total"`
}

// Summarize computes a Summary. Fee and value totals are exact; the
// distributions use float approximations.
func Summarize(recs []logging.LogRecord) (Summary, error) {
	s := Summary{
		Batches:    len(recs),
		ByStatus:   map[string]int{},
		ByKind:     map[string]int{},
		ErrorCodes: map[string]int{},
		FeeTotal:   "0",
		ValueTotal: "0",
	}
	if len(recs) == 0 {
		return s, nil
	}
	feeTotal, valueTotal := new(uint256.Int), new(uint256.Int)
	var recipients, rates, fees, durations []float64
	for _, r := range recs {
		if s.First.IsZero() || r.Timestamp.Before(s.First) {
			s.First = r.Timestamp
		}
		if r.Timestamp.After(s.Last) {
			s.Last = r.Timestamp
		}
		s.ByStatus[r.Status]++
		s.ByKind[r.Kind]++
		if r.ErrorCode != "" {
			s.ErrorCodes[r.ErrorCode]++
		}
		durations = append(durations, r.DurationMS)
		if r.Status != metrics.StatusCommitted {
			continue
		}
		fee, err := model.ParseAmount(r.Fee)
		if err != nil {
			return Summary{}, fmt.Errorf("batch %s: fee: %w", r.BatchID, err)
		}
		value, err := model.ParseAmount(r.TotalValue)
		if err != nil {
			return Summary{}, fmt.Errorf("batch %s: total value: %w", r.BatchID, err)
		}
		if _, overflow := feeTotal.AddOverflow(feeTotal, fee); overflow {
			return Summary{}, fmt.Errorf("fee total overflows at batch %s", r.BatchID)
		}
		if _, overflow := valueTotal.AddOverflow(valueTotal, value); overflow {
			return Summary{}, fmt.Errorf("value total overflows at batch %s", r.BatchID)
		}
		recipients = append(recipients, float64(r.Recipients))
		fees = append(fees, model.AmountFloat(fee))
		if r.Recipients > 0 {
			rates = append(rates, float64(r.Successes)/float64(r.Recipients))
		}
	}
	s.FeeTotal = model.FormatAmount(feeTotal)
	s.ValueTotal = model.FormatAmount(valueTotal)
	s.Recipients = describe(recipients)
	s.SuccessRate = describe(rates)
	s.Fee = describe(fees)
	s.Duration = describe(durations)
	return s, nil
}

func describe(xs []float64) Stat {
	if len(xs) == 0 {
		return Stat{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	st := Stat{
		Min: floats.Min(sorted),
		Max: floats.Max(sorted),
		P50: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95: stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(sorted) == 1 {
		st.Mean = sorted[0]
		return st
	}
	st.Mean, st.StdDev = stat.MeanStdDev(sorted, nil)
	return st
}
