// Package supervisor sequences the broker session of the agent.
//
// A Supervisor is a three state machine (Disconnected, Connecting,
// Connected) driven by Step. Step performs at most one unit of work and
// never sleeps: while a retry is pending it returns the time left before
// the next attempt, so the same machine can be driven by Run, by a ticker or
// by a test with a fake clock.
//
// Reconnection is unconditional: failed attempts are retried forever with a
// constant delay and no distinction between transient and permanent causes.
//
// The Broker collaborator owns the session state. The supervisor only
// observes it and calls Connect, Subscribe, Loop and Disconnect, all from a
// single goroutine.
package supervisor
