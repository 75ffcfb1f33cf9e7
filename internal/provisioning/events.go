package provisioning

// Event is delivered by the provisioning protocol service.
type Event int

const (
	EventStarted Event = iota + 1
	EventClientConnected
	EventClientDisconnected
	EventCredentialsReceived
	EventCompleted
	EventRebootNeeded
	EventFatalError
)

func (e Event) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventClientConnected:
		return "client_connected"
	case EventClientDisconnected:
		return "client_disconnected"
	case EventCredentialsReceived:
		return "credentials_received"
	case EventCompleted:
		return "completed"
	case EventRebootNeeded:
		return "reboot_needed"
	case EventFatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// StartResult is returned by ProtocolService.Start.
type StartResult int

const (
	// StartStarted means the service is running and will emit events.
	StartStarted StartResult = iota + 1

	// StartAlreadyProvisioned means the service found the node provisioned.
	StartAlreadyProvisioned
)
