package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the node.
const (
	MeasurementStatus = "node_status"
	MeasurementEvent  = "node_event"
)

// WriteStatus records one status channel transition.
//
// Parameters:
//   - nodeID: Node identifier (tag)
//   - channel: Status channel name, e.g. "network" (tag)
//   - value: New value as text, e.g. "connected"
//   - code: New value as its numeric enum, for graphing
//   - at: When the transition was observed
//
// Example:
//
//	client.WriteStatus("kitchen", "provisioning", "completed", 2, time.Now())
func (c *Client) WriteStatus(nodeID, channel, value string, code int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newStatusPoint(nodeID, channel, value, code, at))
}

// WriteEvent records a one-off node event such as a button press or a
// planned restart.
func (c *Client) WriteEvent(nodeID, kind, detail string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(MeasurementEvent,
		map[string]string{"node_id": nodeID, "kind": kind},
		map[string]interface{}{"detail": detail},
		at))
}

func newStatusPoint(nodeID, channel, value string, code int, at time.Time) *write.Point {
	return write.NewPoint(MeasurementStatus,
		map[string]string{
			"node_id": nodeID,
			"channel": channel,
		},
		map[string]interface{}{
			"value": value,
			"code":  code,
		},
		at)
}
