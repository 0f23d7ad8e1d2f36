// Package telemetry connects the plant to message brokers.
//
// Over Kafka a [Publisher] streams snapshots to the telemetry topic and a
// [CommandConsumer] turns records on the command topic into point writes.
// An [MQTTBridge] does both over a single MQTT connection.
//
// Telemetry records are JSON snapshots; Kafka records are keyed by
// [MessageKey]. Commands are JSON objects of the form
// {"point": "valve.control_signal", "value": 40}.
package telemetry
