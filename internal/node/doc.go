// Package node is the composition root of the Gray Logic field node.
//
// Build turns a loaded configuration into a Node: it opens the credential
// database, creates the status bus and the fatal escalation handler, and
// wires the provisioning, network and feedback coordinators to their host
// collaborators (netlink, the SoftAP helper, the DHCP client, GPIO, MQTT
// and optionally InfluxDB).
//
// Run starts every component on its own goroutine, provisioning first,
// then network, then feedback, and returns when they have all stopped.
package node
