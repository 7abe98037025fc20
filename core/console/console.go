// Package console writes the agent's diagnostic text stream: link progress,
// broker connection attempts and echoed messages. It is the equivalent of a
// device serial console and is kept apart from structured logs.
package console

import (
	"fmt"
	"io"
	"sync"
)

// Console serialises writes to the diagnostic stream. Write errors are
// ignored: the console is observability only and has no recovery path.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// New wraps w. A nil writer discards everything.
func New(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w}
}

func (c *Console) Print(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprint(c.w, a...)
}

func (c *Console) Println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, a...)
}

func (c *Console) Printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, format, a...)
}

// OnMessage echoes an inbound message as a single line:
//
//	Message arrived [<topic>]: <payload>
//
// The payload is written byte for byte.
func (c *Console) OnMessage(topic string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := make([]byte, 0, len(topic)+len(payload)+20)
	line = append(line, "Message arrived ["...)
	line = append(line, topic...)
	line = append(line, "]: "...)
	line = append(line, payload...)
	line = append(line, '\n')
	_, _ = c.w.Write(line)
}
