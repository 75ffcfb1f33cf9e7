// Package provisioning implements the provisioning coordinator.
//
// The coordinator publishes ProvisioningStatus on the status bus:
//
//	NotStarted -> InProgress -> Completed
//	NotStarted -> Completed              (credentials already stored)
//
// The provisioning protocol itself (SoftAP, credential exchange) is run by
// a ProtocolService; the coordinator only turns its events into status.
// Client connects, disconnects and received credentials are logged.
// RebootNeeded is a planned restart and FatalError escalates.
//
// After Completed the coordinator optionally holds a discoverability
// window: radio power save off and an mDNS announcement so the phone that
// provisioned the node can find it, then power save back on. Once that
// ends the coordinator is finished; network bring-up belongs to the
// network coordinator.
//
// Status only moves forward. A repeated or older status is not published.
package provisioning
