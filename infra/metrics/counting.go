package metrics

import (
	"time"

	coremetrics "github.com/kilianp07/mqttwatch/core/metrics"
	"github.com/kilianp07/mqttwatch/core/supervisor"
	"github.com/kilianp07/mqttwatch/infra/logger"
)

// CountingSink forwards every message to the next sink and records its
// size. Payloads are never inspected.
type CountingSink struct {
	next supervisor.MessageSink
	rec  coremetrics.Recorder
	log  logger.Logger
	now  func() time.Time
}

var _ supervisor.MessageSink = (*CountingSink)(nil)

// NewCountingSink wraps next. A nil recorder records nothing.
func NewCountingSink(next supervisor.MessageSink, rec coremetrics.Recorder) *CountingSink {
	if rec == nil {
		rec = coremetrics.NopRecorder{}
	}
	return &CountingSink{next: next, rec: rec, log: logger.New("counting_sink"), now: time.Now}
}

func (s *CountingSink) OnMessage(topic string, payload []byte) {
	s.next.OnMessage(topic, payload)
	if err := s.rec.RecordMessage(coremetrics.MessageEvent{Topic: topic, Size: len(payload), Time: s.now()}); err != nil {
		s.log.Debugf("record message: %v", err)
	}
}
