package mqtt

import "fmt"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "graylogic/node"

// Topics builds the MQTT topics owned by one node.
//
// All topics live under {prefix}/{node_id}:
//
//	topics := mqtt.NewTopics("graylogic/node", "kitchen")
//	topics.Payload()        // graylogic/node/kitchen/payload
//	topics.Status("network") // graylogic/node/kitchen/status/network
type Topics struct {
	prefix string
	nodeID string
}

// NewTopics returns a topic builder for nodeID under prefix.
func NewTopics(prefix, nodeID string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix, nodeID: nodeID}
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", t.prefix, t.nodeID)
}

// Availability returns the retained online/offline topic (also the LWT topic).
//
// Example: graylogic/node/kitchen/availability
func (t Topics) Availability() string {
	return t.base() + "/availability"
}

// Status returns the retained topic mirroring one status channel.
//
// Example: graylogic/node/kitchen/status/provisioning
func (t Topics) Status(channel string) string {
	return fmt.Sprintf("%s/status/%s", t.base(), channel)
}

// Payload returns the topic for button-triggered application payloads.
//
// Example: graylogic/node/kitchen/payload
func (t Topics) Payload() string {
	return t.base() + "/payload"
}
