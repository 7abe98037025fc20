// Package metrics defines the events the agent records about its network link
// and broker session, and the Recorder interface sinks implement. Recorders
// are instantiated by type name from configuration (see NewRecorder) and
// combined with MultiRecorder when more than one is configured.
package metrics
