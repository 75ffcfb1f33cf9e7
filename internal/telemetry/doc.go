// Package telemetry keeps a history of the node's status channels in
// InfluxDB.
//
// The Recorder is one more status bus subscriber. It writes a point for
// every value change and an event point when the node escalates, flushing
// before the escalation acts so the last transitions survive the restart.
// Telemetry is optional: with InfluxDB disabled the node runs without it.
package telemetry
