package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/mqttwatch/core/metrics"
)

type influxServer struct {
	mu     sync.Mutex
	bodies []string
}

func newInfluxServer(t *testing.T) (*httptest.Server, *influxServer) {
	t.Helper()
	is := &influxServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		is.mu.Lock()
		is.bodies = append(is.bodies, strings.TrimSpace(string(data)))
		is.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, is
}

func (is *influxServer) all() []string {
	is.mu.Lock()
	defer is.mu.Unlock()
	return append([]string(nil), is.bodies...)
}

// lines splits batched request bodies into single line-protocol points.
func lines(bodies []string) []string {
	var out []string
	for _, b := range bodies {
		for _, l := range strings.Split(b, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
	}
	return out
}

func TestInfluxRecorder_RecordConnectAttempt(t *testing.T) {
	srv, is := newInfluxServer(t)
	rec := NewInfluxRecorder(srv.URL, "token", "org", "bucket")

	now := time.Now()
	ev := coremetrics.ConnectAttemptEvent{Attempt: 3, Code: 5, Duration: 1500 * time.Microsecond, Time: now}
	require.NoError(t, rec.RecordConnectAttempt(ev))
	require.NoError(t, rec.Close())

	p := write.NewPointWithMeasurement("connect_attempt").
		AddTag("result", "failure").
		AddTag("code", "5").
		AddField("attempt", 3).
		AddField("duration_ms", 1.5).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	assert.Equal(t, []string{expected}, lines(is.all()))
}

func TestInfluxRecorder_RecordSessionAndLink(t *testing.T) {
	srv, is := newInfluxServer(t)
	rec := NewInfluxRecorder(srv.URL+"/api/v2/write", "token", "org", "bucket")

	now := time.Now()
	require.NoError(t, rec.RecordSessionState(coremetrics.SessionStateEvent{SessionID: "s1", Up: false, Uptime: 2 * time.Second, Time: now}))
	require.NoError(t, rec.RecordLinkJoined(coremetrics.LinkEvent{Network: "home", Address: "10.0.0.7", Wait: time.Second, Time: now}))
	require.NoError(t, rec.Close())

	p1 := write.NewPointWithMeasurement("session_state").
		AddTag("session_id", "s1").
		AddTag("state", "down").
		AddField("uptime_s", 2.0).
		SetTime(now)
	p2 := write.NewPointWithMeasurement("link_joined").
		AddTag("network", "home").
		AddField("address", "10.0.0.7").
		AddField("wait_ms", 1000.0).
		SetTime(now)
	assert.Equal(t, []string{
		strings.TrimSpace(write.PointToLineProtocol(p1, time.Nanosecond)),
		strings.TrimSpace(write.PointToLineProtocol(p2, time.Nanosecond)),
	}, lines(is.all()))
}

func TestInfluxRecorder_SlowServerDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	var writes sync.WaitGroup
	writes.Add(1)
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		select {
		case <-release:
		case <-time.After(3 * time.Second):
		}
		once.Do(writes.Done)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	rec := NewInfluxRecorder(srv.URL, "token", "org", "bucket")

	now := time.Now()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.RecordConnectAttempt(coremetrics.ConnectAttemptEvent{Attempt: i + 1, Code: 3, Time: now}))
		require.NoError(t, rec.RecordSessionState(coremetrics.SessionStateEvent{SessionID: "s", Up: true, Time: now}))
		require.NoError(t, rec.RecordLinkJoined(coremetrics.LinkEvent{Network: "n", Address: "a", Time: now}))
	}
	assert.Less(t, time.Since(start), time.Second, "record calls must not wait for the server")

	close(release)
	require.NoError(t, rec.Close())
	writes.Wait()
}

func TestInfluxRecorder_RecordMessageFlushedOnClose(t *testing.T) {
	srv, is := newInfluxServer(t)
	rec := NewInfluxRecorder(srv.URL, "token", "org", "bucket")

	now := time.Now()
	require.NoError(t, rec.RecordMessage(coremetrics.MessageEvent{Topic: "t/1", Size: 5, Time: now}))
	require.NoError(t, rec.Close())

	body := strings.Join(is.all(), "\n")
	assert.Contains(t, body, "message_received")
	assert.Contains(t, body, `topic="t/1"`)
	assert.Contains(t, body, "bytes=5i")
}

func TestNewInfluxRecorderWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	rec := NewInfluxRecorderWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	_, ok := rec.(*InfluxRecorder)
	assert.False(t, ok, "expected NopRecorder on failing health check")
	assert.True(t, called, "health endpoint not called")
}
