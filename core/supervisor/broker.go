package supervisor

import (
	"context"
	"errors"
	"fmt"
)

// MessageSink receives every inbound message matching the subscription.
type MessageSink interface {
	OnMessage(topic string, payload []byte)
}

// MessageSinkFunc adapts a function to MessageSink.
type MessageSinkFunc func(topic string, payload []byte)

func (f MessageSinkFunc) OnMessage(topic string, payload []byte) { f(topic, payload) }

// Broker is the publish/subscribe client the supervisor drives. It holds
// the MessageSink and must only invoke it from Loop, after a successful
// Subscribe.
type Broker interface {
	// Connect opens a new session. Failures should be reported as a
	// *ConnectError carrying the numeric state code.
	Connect(ctx context.Context) error
	// Subscribe registers the topic filter on the current session.
	Subscribe(ctx context.Context, topic string, qos byte) error
	// Loop services the session: it drains queued inbound messages to the
	// sink and returns the number delivered. It returns promptly.
	Loop(ctx context.Context) int
	// IsConnected reports whether the session is still up.
	IsConnected() bool
	// Disconnect closes the session. It is safe to call at any time.
	Disconnect()
}

// Session state codes reported on failed connect attempts.
const (
	CodeConnectionTimeout = -4
	CodeConnectionLost    = -3
	CodeConnectFailed     = -2
	CodeDisconnected      = -1
	CodeConnected         = 0
	CodeBadProtocol       = 1
	CodeBadClientID       = 2
	CodeUnavailable       = 3
	CodeBadCredentials    = 4
	CodeUnauthorized      = 5
)

// ErrSubscribe is returned when the subscription of a fresh session fails.
var ErrSubscribe = errors.New("subscribe failed")

// ConnectError is a failed connect attempt with its state code.
type ConnectError struct {
	Code int
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect failed (rc=%d)", e.Code)
	}
	return fmt.Sprintf("connect failed (rc=%d): %v", e.Code, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// CodeOf extracts the state code from err. Errors without a code map to
// CodeConnectionTimeout for deadlines and CodeConnectFailed otherwise.
func CodeOf(err error) int {
	if err == nil {
		return CodeConnected
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeConnectionTimeout
	}
	return CodeConnectFailed
}
