package metrics_test

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	metrics "github.com/kilianp07/multisend/core/metrics"
)

func TestConfigDecode(t *testing.T) {
	var fromYAML metrics.Config
	err := yaml.Unmarshal([]byte("sinks:\n  - type: prometheus\n  - type: influx\n    conf:\n      url: http://influx:8086\n      bucket: batches\n"), &fromYAML)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(fromYAML.Sinks) != 2 || fromYAML.Sinks[1].Conf["bucket"] != "batches" {
		t.Fatalf("unexpected sinks %+v", fromYAML.Sinks)
	}

	var fromJSON metrics.Config
	if err := json.Unmarshal([]byte(`{"sinks":[{"type":"nop"}],"prom_addr":":9100"}`), &fromJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	if fromJSON.Sinks[0].Type != "nop" {
		t.Fatalf("unexpected sinks %+v", fromJSON.Sinks)
	}
}
