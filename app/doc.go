// Package app wires configuration, logging, metrics, the network link and
// the broker session supervisor into a runnable service.
package app
