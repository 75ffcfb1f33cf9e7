package statusbus

// ChannelID names one status channel.
type ChannelID string

// Channel identities.
const (
	ChannelNetwork      ChannelID = "network"
	ChannelProvisioning ChannelID = "provisioning"
	ChannelTransport    ChannelID = "transport"
)

// NetworkStatus is the link state published by the network coordinator.
type NetworkStatus int

const (
	NetworkDisconnected NetworkStatus = iota
	NetworkConnected
)

func (s NetworkStatus) String() string {
	switch s {
	case NetworkConnected:
		return "connected"
	case NetworkDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ProvisioningStatus is published by the provisioning coordinator.
// It only moves forward: NotStarted, InProgress, Completed.
type ProvisioningStatus int

const (
	ProvisioningNotStarted ProvisioningStatus = iota
	ProvisioningInProgress
	ProvisioningCompleted
)

func (s ProvisioningStatus) String() string {
	switch s {
	case ProvisioningNotStarted:
		return "not_started"
	case ProvisioningInProgress:
		return "in_progress"
	case ProvisioningCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// TransportStatus is the application transport (MQTT) session state.
type TransportStatus int

const (
	TransportDisconnected TransportStatus = iota
	TransportConnected
)

func (s TransportStatus) String() string {
	switch s {
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
