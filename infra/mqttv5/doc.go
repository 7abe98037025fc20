// Package mqttv5 implements the broker session client for MQTT 5 on the
// low-level Eclipse Paho client. Configuration, TLS trust policy and the
// session inbox are shared with package mqtt.
package mqttv5
