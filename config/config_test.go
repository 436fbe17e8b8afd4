package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/multisend/core/dispatch"
)

const (
	owner    = "0x1000000000000000000000000000000000000001"
	self     = "0x2000000000000000000000000000000000000002"
	feeAddr  = "0x3000000000000000000000000000000000000003"
	tokenA   = "0x4000000000000000000000000000000000000004"
	nftA     = "0x5000000000000000000000000000000000000005"
	receiver = "0x6000000000000000000000000000000000000006"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullYAML = `dispatcher:
  address: "` + self + `"
  owner: "` + owner + `"
  fee_address: "` + feeAddr + `"
  rate_per_address: "10"
  minimum_rate_per_tx: "25"
  max_transfers_per_tx: 50
ledger:
  type: sqlite
  path: "state.db"
  genesis:
    - address: "` + owner + `"
      native: "1000"
      tokens:
        "` + tokenA + `": "500"
      allowances:
        "` + tokenA + `": "400"
      nfts:
        "` + nftA + `": ["1", "2"]
      operators: ["` + nftA + `"]
  receivers:
    - address: "` + receiver + `"
      reject: true
metrics:
  prom_addr: ":9100"
  sinks:
    - type: "nop"
logging:
  backend: sqlite
  path: "batches.db"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  qos: 1
sentry:
  dsn: ""
api:
  token: "secret"
`

//nolint:gocyclo
func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", fullYAML))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"dispatcher.owner", cfg.Dispatcher.Owner, owner},
		{"dispatcher.rate", cfg.Dispatcher.RatePerAddress, "10"},
		{"dispatcher.max", cfg.Dispatcher.MaxTransfersPerTx, 50},
		{"dispatcher.stipend", cfg.Dispatcher.NativeGasStipend, uint64(2300)},
		{"ledger.type", cfg.Ledger.Type, "sqlite"},
		{"ledger.path", cfg.Ledger.Path, "state.db"},
		{"metrics.prom_addr", cfg.Metrics.PromAddr, ":9100"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"logging.backend", cfg.Logging.Backend, "sqlite"},
		{"mqtt.qos", cfg.MQTT.QoS, byte(1)},
		{"mqtt.client_id", cfg.MQTT.ClientID, "multisend"},
		{"api.addr", cfg.API.Addr, ":8080"},
		{"api.token", cfg.API.Token, "secret"},
		{"api.cache", cfg.API.IdempotencyCacheSize, 1024},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}

	accounts, err := cfg.Ledger.Accounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	acc := accounts[0]
	assert.Equal(t, common.HexToAddress(owner), acc.Address)
	assert.Equal(t, uint64(1000), acc.Native.Uint64())
	assert.Equal(t, uint64(500), acc.Tokens[common.HexToAddress(tokenA)].Uint64())
	assert.Equal(t, uint64(400), acc.Allowances[common.HexToAddress(tokenA)].Uint64())
	assert.Len(t, acc.NFTs[common.HexToAddress(nftA)], 2)
	assert.Equal(t, []common.Address{common.HexToAddress(nftA)}, acc.Operators)

	policies, err := cfg.Ledger.Policies()
	require.NoError(t, err)
	assert.True(t, policies[common.HexToAddress(receiver)].Reject)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_API__TOKEN", "from-env")
	t.Setenv("K_DISPATCHER__RATE_PER_ADDRESS", "7")
	t.Setenv("K_DISPATCHER__MAX_TRANSFERS_PER_TX", "12")
	cfg, err := Load(writeConfig(t, "config.yaml", fullYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.API.Token)
	assert.Equal(t, "7", cfg.Dispatcher.RatePerAddress)
	assert.Equal(t, 12, cfg.Dispatcher.MaxTransfersPerTx)
	assert.Equal(t, "25", cfg.Dispatcher.MinimumRatePerTx)
}

func TestLoadJSONDefaults(t *testing.T) {
	data := `{"dispatcher": {"address": "` + self + `", "owner": "` + owner + `", "fee_address": "` + feeAddr + `"}}`
	cfg, err := Load(writeConfig(t, "config.json", data))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Ledger.Type)
	assert.Equal(t, "jsonl", cfg.Logging.Backend)
	assert.Equal(t, dispatch.DefaultMaxTransfersPerTx, cfg.Dispatcher.MaxTransfersPerTx)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoadErrors(t *testing.T) {
	base := `dispatcher: {address: "` + self + `", owner: "` + owner + `", fee_address: "` + feeAddr + `"}
`
	tests := []struct {
		name string
		file string
		data string
	}{
		{"format", "config.toml", ""},
		{"dispatcher", "config.yaml", "dispatcher: {owner: nope}\n"},
		{"ledger type", "config.yaml", base + "ledger: {type: postgres}\n"},
		{"genesis amount", "config.yaml", base + "ledger: {genesis: [{address: \"" + owner + "\", native: \"-1\"}]}\n"},
		{"receiver address", "config.yaml", base + "ledger: {receivers: [{address: \"0x12\"}]}\n"},
		{"logging", "config.yaml", base + "logging: {backend: csv}\n"},
		{"mqtt", "config.yaml", base + "mqtt: {enabled: true}\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.file, tc.data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDispatcherErrorKind(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", "dispatcher: {owner: nope}\n"))
	if !errors.Is(err, dispatch.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}
