// Package infra contains technical adapters: MQTT broker clients, the host
// network link provider, metrics exporters and the zerolog logger. These
// packages depend only on the interfaces defined in the core packages.
package infra
