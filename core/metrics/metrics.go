package metrics

import "time"

// Config defines the configured metrics sinks.
type Config struct {
	Sinks []SinkConfig `json:"sinks"`
}

// ConnectAttemptEvent records one broker connect attempt.
type ConnectAttemptEvent struct {
	Attempt  int
	Success  bool
	Code     int
	Duration time.Duration
	Time     time.Time
}

// SessionStateEvent records a session coming up or going down.
type SessionStateEvent struct {
	SessionID string
	Up        bool
	// Uptime is set when the session goes down.
	Uptime time.Duration
	Time   time.Time
}

// LinkEvent records the network link being joined.
type LinkEvent struct {
	Network string
	Address string
	Wait    time.Duration
	Time    time.Time
}

// MessageEvent records an inbound message. Only the size is kept; payloads
// are never inspected.
type MessageEvent struct {
	Topic string
	Size  int
	Time  time.Time
}

// Recorder receives agent events for observability purposes.
type Recorder interface {
	RecordConnectAttempt(ev ConnectAttemptEvent) error
	RecordSessionState(ev SessionStateEvent) error
	RecordLinkJoined(ev LinkEvent) error
	RecordMessage(ev MessageEvent) error
}

// NopRecorder implements Recorder with no-op methods.
type NopRecorder struct{}

func (NopRecorder) RecordConnectAttempt(ConnectAttemptEvent) error { return nil }
func (NopRecorder) RecordSessionState(SessionStateEvent) error     { return nil }
func (NopRecorder) RecordLinkJoined(LinkEvent) error               { return nil }
func (NopRecorder) RecordMessage(MessageEvent) error               { return nil }

// Closer is implemented by recorders holding resources.
type Closer interface {
	Close() error
}
