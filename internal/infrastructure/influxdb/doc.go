// Package influxdb provides optional status history storage for the node.
//
// It wraps the official influxdb-client-go v2 library. Every status bus
// transition and notable node event can be written as a point so a fleet
// dashboard can show when a node lost WiFi or was re-provisioned.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history is optional
//	}
//	defer client.Close()
//
//	client.WriteStatus("kitchen", "network", "connected", 0, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched and
// non-blocking; failures surface through SetOnError.
package influxdb
