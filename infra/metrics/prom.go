package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/mqttwatch/core/metrics"
)

// PromRecorder records agent events in Prometheus metrics.
type PromRecorder struct {
	attempts  *prometheus.CounterVec
	sessionUp prometheus.Gauge
	sessions  prometheus.Counter
	messages  prometheus.Counter
	bytes     prometheus.Counter
	linkJoin  prometheus.Gauge
}

// NewPromRecorder registers the agent metrics on the default Prometheus
// registerer. The HTTP endpoint is served separately by StartPromServer.
func NewPromRecorder() (*PromRecorder, error) {
	return NewPromRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromRecorderWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromRecorderWithRegistry(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	attempts, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mqttwatch_connect_attempts_total",
		Help: "Broker connect attempts by result and state code",
	}, []string{"result", "code"}))
	if err != nil {
		return nil, err
	}
	sessionUp, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqttwatch_session_up",
		Help: "1 while a broker session is established",
	}))
	if err != nil {
		return nil, err
	}
	sessions, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqttwatch_sessions_total",
		Help: "Broker sessions established",
	}))
	if err != nil {
		return nil, err
	}
	messages, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqttwatch_messages_received_total",
		Help: "Messages delivered to the console",
	}))
	if err != nil {
		return nil, err
	}
	bytes, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqttwatch_message_bytes_total",
		Help: "Payload bytes delivered to the console",
	}))
	if err != nil {
		return nil, err
	}
	linkJoin, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqttwatch_link_join_seconds",
		Help: "Time spent waiting for the network link",
	}))
	if err != nil {
		return nil, err
	}
	return &PromRecorder{
		attempts:  attempts,
		sessionUp: sessionUp,
		sessions:  sessions,
		messages:  messages,
		bytes:     bytes,
		linkJoin:  linkJoin,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordConnectAttempt counts the attempt under its result and code.
func (r *PromRecorder) RecordConnectAttempt(ev coremetrics.ConnectAttemptEvent) error {
	r.attempts.WithLabelValues(result(ev.Success), strconv.Itoa(ev.Code)).Inc()
	return nil
}

// RecordSessionState flips the session gauge.
func (r *PromRecorder) RecordSessionState(ev coremetrics.SessionStateEvent) error {
	if ev.Up {
		r.sessionUp.Set(1)
		r.sessions.Inc()
		return nil
	}
	r.sessionUp.Set(0)
	return nil
}

// RecordLinkJoined sets the link join gauge.
func (r *PromRecorder) RecordLinkJoined(ev coremetrics.LinkEvent) error {
	r.linkJoin.Set(ev.Wait.Seconds())
	return nil
}

// RecordMessage counts one message and its size.
func (r *PromRecorder) RecordMessage(ev coremetrics.MessageEvent) error {
	r.messages.Inc()
	r.bytes.Add(float64(ev.Size))
	return nil
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
