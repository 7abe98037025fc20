package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	coremetrics "github.com/kilianp07/mqttwatch/core/metrics"
	"github.com/kilianp07/mqttwatch/core/supervisor"
)

type msgRecorder struct {
	coremetrics.NopRecorder
	events []coremetrics.MessageEvent
}

func (m *msgRecorder) RecordMessage(ev coremetrics.MessageEvent) error {
	m.events = append(m.events, ev)
	return nil
}

func TestCountingSink(t *testing.T) {
	var got []string
	next := supervisor.MessageSinkFunc(func(topic string, payload []byte) {
		got = append(got, topic+":"+string(payload))
	})
	rec := &msgRecorder{}
	s := NewCountingSink(next, rec)

	s.OnMessage("t/1", []byte("hello"))
	s.OnMessage("t/2", nil)

	assert.Equal(t, []string{"t/1:hello", "t/2:"}, got)
	if assert.Len(t, rec.events, 2) {
		assert.Equal(t, "t/1", rec.events[0].Topic)
		assert.Equal(t, 5, rec.events[0].Size)
		assert.Equal(t, 0, rec.events[1].Size)
		assert.False(t, rec.events[0].Time.IsZero())
	}
}

func TestCountingSink_NilRecorder(t *testing.T) {
	calls := 0
	s := NewCountingSink(supervisor.MessageSinkFunc(func(string, []byte) { calls++ }), nil)
	s.OnMessage("t", []byte("x"))
	assert.Equal(t, 1, calls)
}
