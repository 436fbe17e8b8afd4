package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/multisend/core/dispatch/logging"
)

func sample() []logging.LogRecord {
	return []logging.LogRecord{{
		BatchID:       "b1",
		Timestamp:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Caller:        "0x00000000000000000000000000000000000000a1",
		Kind:          "native",
		Status:        "committed",
		Recipients:    3,
		Successes:     2,
		AttachedValue: "70",
		TotalValue:    "40",
		Fee:           "2",
		Change:        "28",
	}}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "b1", rows[1][0])
	assert.Equal(t, "2024-05-01T12:00:00Z", rows[1][1])
	assert.Equal(t, "2", rows[1][7])
	assert.Equal(t, "28", rows[1][11])
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestWriteFormats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", sample()))
	var out []logging.LogRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "committed", out[0].Status)

	if err := Write(&buf, "xml", sample()); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
