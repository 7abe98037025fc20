package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/mqttwatch/core/console"
	"github.com/kilianp07/mqttwatch/core/logger"
	"github.com/kilianp07/mqttwatch/core/metrics"
)

// State of the broker session as seen by the supervisor.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultRetryDelay is the constant wait between failed attempts.
const DefaultRetryDelay = 5 * time.Second

// Params is the immutable session configuration.
type Params struct {
	Topic      string
	QoS        byte
	RetryDelay time.Duration
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.Topic == "" {
		return errors.New("topic is required")
	}
	if p.QoS > 2 {
		return fmt.Errorf("invalid qos %d", p.QoS)
	}
	if p.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive, got %s", p.RetryDelay)
	}
	return nil
}

// Stats is a snapshot of the supervisor counters.
type Stats struct {
	State     State
	Attempts  int
	Failures  int
	Sessions  int
	SessionID string
}

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithConsole sets the diagnostic console.
func WithConsole(c *console.Console) Option { return func(s *Supervisor) { s.console = c } }

// WithLogger sets the structured logger.
func WithLogger(l logger.Logger) Option { return func(s *Supervisor) { s.log = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(s *Supervisor) { s.rec = r } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Supervisor) { s.now = now } }

// Supervisor drives a Broker through Disconnected, Connecting and Connected.
// It is not safe for concurrent use.
type Supervisor struct {
	broker  Broker
	params  Params
	console *console.Console
	log     logger.Logger
	rec     metrics.Recorder
	now     func() time.Time

	state       State
	nextAttempt time.Time
	stats       Stats
	sessionUp   time.Time
}

// New creates a Supervisor in the Disconnected state. A zero RetryDelay
// falls back to DefaultRetryDelay.
func New(b Broker, p Params, opts ...Option) *Supervisor {
	if p.RetryDelay <= 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	s := &Supervisor{
		broker:  b,
		params:  p,
		console: console.New(nil),
		log:     logger.NopLogger{},
		rec:     metrics.NopRecorder{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current state.
func (s *Supervisor) State() State { return s.state }

// Stats returns a snapshot of the counters.
func (s *Supervisor) Stats() Stats {
	st := s.stats
	st.State = s.state
	return st
}

// Step advances the machine by one unit of work and returns how long the
// caller should wait before stepping again. Zero means step again now.
func (s *Supervisor) Step(ctx context.Context) time.Duration {
	switch s.state {
	case Disconnected:
		s.state = Connecting
		s.nextAttempt = time.Time{}
		return 0
	case Connecting:
		if wait := s.nextAttempt.Sub(s.now()); wait > 0 {
			return wait
		}
		return s.attempt(ctx)
	case Connected:
		if !s.broker.IsConnected() {
			s.dropped()
			return 0
		}
		s.broker.Loop(ctx)
		return 0
	}
	return 0
}

// Run steps the machine until ctx is cancelled, then closes the session.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.Close()
	for {
		if ctx.Err() != nil {
			return nil
		}
		wait := s.Step(ctx)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Close disconnects an established session and resets the machine.
func (s *Supervisor) Close() {
	if s.state == Connected {
		s.broker.Disconnect()
		s.down()
		s.log.Infof("session %s closed", s.stats.SessionID)
	}
	s.state = Disconnected
}

func (s *Supervisor) attempt(ctx context.Context) time.Duration {
	s.stats.Attempts++
	s.console.Print("Attempting MQTT connection...")
	start := s.now()
	err := s.broker.Connect(ctx)
	if err == nil {
		s.console.Println("connected")
		if serr := s.broker.Subscribe(ctx, s.params.Topic, s.params.QoS); serr != nil {
			s.broker.Disconnect()
			err = fmt.Errorf("%w: %w", ErrSubscribe, serr)
		}
	}
	if err != nil && ctx.Err() != nil {
		s.console.Println("cancelled")
		return 0
	}

	end := s.now()
	code := CodeOf(err)
	if err != nil {
		// The delay runs from the end of the attempt, not from whenever
		// the recorder returns.
		s.nextAttempt = end.Add(s.params.RetryDelay)
		s.stats.Failures++
		s.console.Printf("failed, rc=%d try again in %s\n", code, humanDelay(s.params.RetryDelay))
		s.log.Warnf("connect attempt %d failed (rc=%d): %v", s.stats.Attempts, code, err)
	}
	if rerr := s.rec.RecordConnectAttempt(metrics.ConnectAttemptEvent{
		Attempt:  s.stats.Attempts,
		Success:  err == nil,
		Code:     code,
		Duration: end.Sub(start),
		Time:     end,
	}); rerr != nil {
		s.log.Debugf("record connect attempt: %v", rerr)
	}

	if err != nil {
		if wait := s.nextAttempt.Sub(s.now()); wait > 0 {
			return wait
		}
		return 0
	}
	s.up()
	return 0
}

func (s *Supervisor) up() {
	s.state = Connected
	s.stats.Sessions++
	s.stats.SessionID = uuid.NewString()
	s.sessionUp = s.now()
	s.log.Infof("session %s up after %d attempt(s), subscribed to %q qos=%d",
		s.stats.SessionID, s.stats.Attempts, s.params.Topic, s.params.QoS)
	if err := s.rec.RecordSessionState(metrics.SessionStateEvent{
		SessionID: s.stats.SessionID,
		Up:        true,
		Time:      s.sessionUp,
	}); err != nil {
		s.log.Debugf("record session state: %v", err)
	}
	s.stats.Attempts = 0
}

func (s *Supervisor) dropped() {
	s.log.Warnf("session %s lost", s.stats.SessionID)
	s.broker.Disconnect()
	s.down()
	s.state = Disconnected
}

func (s *Supervisor) down() {
	now := s.now()
	if err := s.rec.RecordSessionState(metrics.SessionStateEvent{
		SessionID: s.stats.SessionID,
		Up:        false,
		Uptime:    now.Sub(s.sessionUp),
		Time:      now,
	}); err != nil {
		s.log.Debugf("record session state: %v", err)
	}
}

func humanDelay(d time.Duration) string {
	if d%time.Second == 0 {
		n := int(d / time.Second)
		if n == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", n)
	}
	return d.String()
}
