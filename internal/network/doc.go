// Package network implements the network coordinator.
//
// The coordinator owns the interface lifecycle:
//
//	Idle -> InterfaceUp -> WaitingOnProvisioning -> Connecting -> Connected <-> Disconnected
//
// It brings the interface up, waits for ProvisioningStatus Completed on the
// status bus (when the gate is configured), asks the connectivity manager
// to connect, and publishes NetworkStatus from link events.
//
// # Link events while gated
//
// The coordinator registers for link events as soon as the interface is
// up. Until the gate opens the radio is serving the provisioning access
// point, so Connected and Disconnected are noise and are dropped without a
// publish. A link FatalError escalates in every state.
//
// # Late registration
//
// If the link came up before the handler was attached the manager would
// never report it. With ResendOnStart the coordinator asks the manager to
// replay its current status right after the connect request.
package network
