package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/multisend/api/batches"
	"github.com/kilianp07/multisend/core/report"
)

const (
	owner   = "0x1000000000000000000000000000000000000001"
	self    = "0x2000000000000000000000000000000000000002"
	feeAddr = "0x3000000000000000000000000000000000000003"
	alice   = "0x4000000000000000000000000000000000000004"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return writeFile(t, dir, "config.yaml", `dispatcher:
  address: "`+self+`"
  owner: "`+owner+`"
  fee_address: "`+feeAddr+`"
  rate_per_address: "2"
ledger:
  genesis:
    - address: "`+owner+`"
      native: "100"
logging:
  path: "`+filepath.Join(dir, "batches.log")+`"
`)
}

func execute(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	return out, rootCmd.Execute()
}

func TestQuoteCommand(t *testing.T) {
	cfg := setup(t)
	out, err := execute(t, "quote", "--config", cfg, "--size", "4")
	require.NoError(t, err)
	var q batches.Quote
	require.NoError(t, json.Unmarshal(out.Bytes(), &q))
	assert.Equal(t, 4, q.Size)
	assert.Equal(t, "8", q.Fee)
}

func TestSendAndReportCommands(t *testing.T) {
	cfg := setup(t)
	batch := writeFile(t, filepath.Dir(cfg), "batch.yaml", `caller: "`+owner+`"
kind: native
recipients: ["`+alice+`"]
amounts: ["10"]
value: "12"
`)
	out, err := execute(t, "send", "--config", cfg, "--file", batch)
	require.NoError(t, err)
	var res batches.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 1, res.TotalSuccesses)
	assert.Equal(t, "2", res.Fee)

	out, err = execute(t, "report", "--config", cfg, "--caller", owner)
	require.NoError(t, err)
	var sum report.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	assert.Equal(t, 1, sum.Batches)

	out, err = execute(t, "export", "--config", cfg, "--format", "csv", "--status", "committed")
	require.NoError(t, err)
	rows, err := csv.NewReader(out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, owner, rows[1][2])
}

func TestSendReportsDispatchError(t *testing.T) {
	cfg := setup(t)
	batch := writeFile(t, filepath.Dir(cfg), "batch.json",
		`{"caller":"`+owner+`","kind":"native","recipients":["`+alice+`"],"amounts":["10"],"value":"1"}`)
	out, err := execute(t, "send", "--config", cfg, "--file", batch)
	if err == nil {
		t.Fatal("expected dispatch error for missing fee")
	}
	var e batches.Error
	require.NoError(t, json.Unmarshal(out.Bytes(), &e))
	assert.Equal(t, "InsufficientFee", e.Kind)
}
