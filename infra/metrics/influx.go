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

	coremetrics "github.com/kilianp07/mqttwatch/core/metrics"
	"github.com/kilianp07/mqttwatch/infra/logger"
)

// InfluxRecorder writes agent events to an InfluxDB instance using the
// official client. Every point goes through the batching write API so a
// slow server never holds up the caller; write errors are logged.
type InfluxRecorder struct {
	client   influxdb2.Client
	batchAPI api.WriteAPI
	log      logger.Logger
}

// NewInfluxRecorder creates a recorder for the given InfluxDB endpoint.
func NewInfluxRecorder(url, token, org, bucket string) *InfluxRecorder {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().
			SetHTTPClient(&http.Client{Timeout: 5 * time.Second}).
			SetFlushInterval(1000))
	r := &InfluxRecorder{
		client:   client,
		batchAPI: client.WriteAPI(org, bucket),
		log:      logger.New("influx_recorder"),
	}
	go r.logErrors(r.batchAPI.Errors())
	return r
}

// logErrors runs until the client closes the error channel.
func (r *InfluxRecorder) logErrors(errs <-chan error) {
	for err := range errs {
		r.log.Warnf("influx write: %v", err)
	}
}

// NewInfluxRecorderWithFallback pings the InfluxDB instance and returns a
// NopRecorder if the health check fails.
func NewInfluxRecorderWithFallback(url, token, org, bucket string) coremetrics.Recorder {
	rec := NewInfluxRecorder(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := rec.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			rec.log.Errorf("influx health check error: %v", err)
		} else {
			rec.log.Errorf("influx health status: %s", health.Status)
		}
		rec.client.Close()
		return coremetrics.NopRecorder{}
	}
	return rec
}

// RecordConnectAttempt queues a connect_attempt point.
func (r *InfluxRecorder) RecordConnectAttempt(ev coremetrics.ConnectAttemptEvent) error {
	p := write.NewPointWithMeasurement("connect_attempt").
		AddTag("result", result(ev.Success)).
		AddTag("code", strconv.Itoa(ev.Code)).
		AddField("attempt", ev.Attempt).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	r.batchAPI.WritePoint(p)
	return nil
}

// RecordSessionState queues a session_state point.
func (r *InfluxRecorder) RecordSessionState(ev coremetrics.SessionStateEvent) error {
	state := "down"
	if ev.Up {
		state = "up"
	}
	p := write.NewPointWithMeasurement("session_state").
		AddTag("session_id", ev.SessionID).
		AddTag("state", state).
		AddField("uptime_s", round3(ev.Uptime.Seconds())).
		SetTime(ev.Time)
	r.batchAPI.WritePoint(p)
	return nil
}

// RecordLinkJoined queues a link_joined point.
func (r *InfluxRecorder) RecordLinkJoined(ev coremetrics.LinkEvent) error {
	p := write.NewPointWithMeasurement("link_joined").
		AddTag("network", ev.Network).
		AddField("address", ev.Address).
		AddField("wait_ms", round3(ev.Wait.Seconds()*1000)).
		SetTime(ev.Time)
	r.batchAPI.WritePoint(p)
	return nil
}

// RecordMessage queues a message_received point on the batching API.
func (r *InfluxRecorder) RecordMessage(ev coremetrics.MessageEvent) error {
	p := write.NewPointWithMeasurement("message_received").
		AddField("topic", ev.Topic).
		AddField("bytes", ev.Size).
		SetTime(ev.Time)
	r.batchAPI.WritePoint(p)
	return nil
}

// Close flushes queued points and releases the client.
func (r *InfluxRecorder) Close() error {
	r.batchAPI.Flush()
	r.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
