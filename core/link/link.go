// Package link waits for the network link the broker session runs over.
//
// Establish asks a Provider to join the named network and then polls until
// the provider reports the link as joined. There is no retry bound: a join
// failure is indistinguishable from a join still in progress.
package link

import (
	"context"
	"time"

	"github.com/kilianp07/mqttwatch/core/console"
	"github.com/kilianp07/mqttwatch/core/logger"
	"github.com/kilianp07/mqttwatch/core/metrics"
)

// DefaultPollInterval is the wait between two status polls.
const DefaultPollInterval = 500 * time.Millisecond

// Provider manages the network association.
type Provider interface {
	// Begin starts joining the network. It may be called again after an error.
	Begin(network, secret string) error
	// Joined reports whether the link is up.
	Joined() bool
	// Address returns the assigned address once joined.
	Address() string
}

// Params identifies the network to join.
type Params struct {
	Network      string
	Secret       string
	PollInterval time.Duration
}

// Deps carries the optional collaborators of Establish.
type Deps struct {
	Console  *console.Console
	Log      logger.Logger
	Recorder metrics.Recorder
}

// Establish blocks until p reports the link joined and returns the assigned
// address. It only returns early, with ctx.Err(), when ctx is cancelled.
func Establish(ctx context.Context, p Provider, params Params, deps Deps) (string, error) {
	con := deps.Console
	if con == nil {
		con = console.New(nil)
	}
	log := deps.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	rec := deps.Recorder
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	start := time.Now()
	con.Println()
	con.Println("Connecting to", params.Network)

	begun := begin(p, params, log)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for !p.Joined() {
		select {
		case <-ctx.Done():
			con.Println()
			return "", ctx.Err()
		case <-ticker.C:
		}
		con.Print(".")
		if !begun {
			begun = begin(p, params, log)
		}
	}

	addr := p.Address()
	con.Println()
	con.Println("WiFi connected")
	con.Println("IP address:", addr)
	wait := time.Since(start)
	log.Infof("link %q joined in %s, address %s", params.Network, wait.Round(time.Millisecond), addr)
	if err := rec.RecordLinkJoined(metrics.LinkEvent{
		Network: params.Network,
		Address: addr,
		Wait:    wait,
		Time:    time.Now(),
	}); err != nil {
		log.Debugf("record link joined: %v", err)
	}
	return addr, nil
}

func begin(p Provider, params Params, log logger.Logger) bool {
	if err := p.Begin(params.Network, params.Secret); err != nil {
		log.Warnf("join %q: %v", params.Network, err)
		return false
	}
	return true
}
