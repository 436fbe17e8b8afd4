package logging

import (
	"context"
	"strings"
	"time"
)

// LogRecord captures one dispatcher call and its result.
type LogRecord struct {
	BatchID       string          `json:"batch_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Caller        string          `json:"caller"`
	Kind          string          `json:"kind"`
	Token         string          `json:"token"`
	Status        string          `json:"status"`
	RevertOnFail  bool            `json:"revert_on_fail"`
	Recipients    int             `json:"recipients"`
	Successes     int             `json:"successes"`
	AttachedValue string          `json:"attached_value"`
	TotalValue    string          `json:"total_value"`
	Fee           string          `json:"fee"`
	Change        string          `json:"change"`
	Outcomes      []OutcomeRecord `json:"outcomes,omitempty"`
	ErrorCode     string          `json:"error_code,omitempty"`
	Error         string          `json:"error,omitempty"`
	DurationMS    float64         `json:"duration_ms"`
}

// OutcomeRecord mirrors model.TransferOutcome for logging purposes.
type OutcomeRecord struct {
	Recipient  string `json:"recipient"`
	AmountOrID string `json:"amount_or_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// LogQuery defines filters for retrieving records. Zero values match
// everything.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	Caller    string
	Kind      string
	Status    string
	Recipient string
}

// Match reports whether r satisfies every filter of q. Addresses compare
// case-insensitively.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Caller != "" && !strings.EqualFold(q.Caller, r.Caller) {
		return false
	}
	if q.Kind != "" && q.Kind != r.Kind {
		return false
	}
	if q.Status != "" && q.Status != r.Status {
		return false
	}
	if q.Recipient != "" {
		for _, o := range r.Outcomes {
			if strings.EqualFold(o.Recipient, q.Recipient) {
				return true
			}
		}
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
