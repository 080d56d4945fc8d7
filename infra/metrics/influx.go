package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/voltroute/planner/core/logger"
	coremetrics "github.com/voltroute/planner/core/metrics"
	infralogger "github.com/voltroute/planner/infra/logger"
)

// InfluxSink writes planning and navigation events to an InfluxDB instance
// using the official client.
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
		log:      infralogger.New("influx-sink"),
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

// RecordPlanResult writes the plan outcome as a point.
func (s *InfluxSink) RecordPlanResult(res coremetrics.PlanResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_result").
		AddTag("timed_out", strconv.FormatBool(res.TimedOut)).
		AddTag("component", "plan_service").
		AddField("candidates", res.Candidates).
		AddField("feasible", res.Feasible).
		AddField("stops", res.Stops).
		AddField("duration_ms", res.Duration.Milliseconds()).
		SetTime(res.Time)
	if res.Err != "" {
		p.AddTag("err", res.Err)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSessionTransition writes one navigation transition.
func (s *InfluxSink) RecordSessionTransition(ev coremetrics.SessionTransition) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("navigation_transition").
		AddTag("session_id", ev.SessionID).
		AddTag("from", ev.From).
		AddTag("to", ev.To).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSnapshotRefresh writes one station index refresh cycle.
func (s *InfluxSink) RecordSnapshotRefresh(ev coremetrics.SnapshotRefresh) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("station_snapshot_refresh").
		AddField("stations", ev.Stations).
		AddField("duration_ms", ev.Duration.Milliseconds()).
		SetTime(ev.Time)
	if ev.Err != "" {
		p.AddTag("err", ev.Err)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
