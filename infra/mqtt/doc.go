// Package mqtt implements the broker session client on Eclipse Paho
// (MQTT 3.1.1) together with the shared broker configuration and TLS trust
// policy.
package mqtt
