package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/multisend/core/metrics"
	"github.com/kilianp07/multisend/infra/logger"
)

// InfluxSink writes batch results to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordBatchResult writes one batch_result point.
func (s *InfluxSink) RecordBatchResult(r coremetrics.BatchResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("batch_result").
		AddTag("batch_id", r.BatchID).
		AddTag("kind", r.Kind).
		AddTag("status", r.Status).
		AddTag("caller", r.Caller).
		AddTag("token", r.Token).
		AddField("recipients", r.Recipients).
		AddField("successes", r.Successes).
		AddField("value_moved", round3(r.ValueMoved)).
		AddField("fee", round3(r.Fee)).
		AddField("change", round3(r.Change)).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		SetTime(r.Time)
	if r.ErrorCode != "" {
		p = p.AddTag("error_code", r.ErrorCode)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTransferFailure persists a failed recipient.
func (s *InfluxSink) RecordTransferFailure(ev coremetrics.TransferFailureEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("transfer_failed").
		AddTag("batch_id", ev.BatchID).
		AddTag("kind", ev.Kind).
		AddTag("recipient", ev.Recipient).
		AddField("amount_or_id", ev.AmountOrID).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAdminOperation records an administrative call.
func (s *InfluxSink) RecordAdminOperation(ev coremetrics.AdminEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("admin_operation").
		AddTag("operation", ev.Operation).
		AddTag("accepted", strconv.FormatBool(ev.Accepted)).
		AddField("caller", ev.Caller).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
