package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/mqttwatch/core/supervisor"
)

// Message is an inbound publication queued for delivery.
type Message struct {
	Topic   string
	Payload []byte
}

// Inbox buffers inbound messages of one broker session. Library callbacks
// Put from their own goroutines; Drain hands messages to the sink on the
// caller's goroutine. Put blocks while the inbox is full until Drain makes
// room or the inbox is closed.
type Inbox struct {
	queue     chan Message
	lost      chan struct{}
	closed    chan struct{}
	lostOnce  sync.Once
	closeOnce sync.Once
}

// NewInbox creates an inbox holding up to size messages.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{
		queue:  make(chan Message, size),
		lost:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Put queues m. It drops m once the inbox is closed.
func (in *Inbox) Put(m Message) {
	select {
	case in.queue <- m:
	case <-in.closed:
	}
}

// MarkLost records that the connection dropped. Drain stops waiting.
func (in *Inbox) MarkLost() { in.lostOnce.Do(func() { close(in.lost) }) }

// Lost reports whether MarkLost or Close was called.
func (in *Inbox) Lost() bool {
	select {
	case <-in.lost:
		return true
	default:
		return false
	}
}

// Close marks the inbox lost and releases blocked Put calls.
func (in *Inbox) Close() {
	in.MarkLost()
	in.closeOnce.Do(func() { close(in.closed) })
}

// Drain waits up to wait for a first message, then delivers everything
// already queued, bounded by the inbox capacity. It returns the number of
// messages delivered.
func (in *Inbox) Drain(ctx context.Context, wait time.Duration, sink supervisor.MessageSink) int {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case m := <-in.queue:
		sink.OnMessage(m.Topic, m.Payload)
	case <-in.lost:
		return 0
	case <-ctx.Done():
		return 0
	case <-timer.C:
		return 0
	}
	n := 1
	for n < cap(in.queue) {
		select {
		case m := <-in.queue:
			sink.OnMessage(m.Topic, m.Payload)
			n++
		default:
			return n
		}
	}
	return n
}
