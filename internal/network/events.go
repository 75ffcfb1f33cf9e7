package network

// LinkEvent is a link-layer notification from the connectivity manager.
type LinkEvent int

const (
	LinkConnected LinkEvent = iota + 1
	LinkDisconnected
	LinkFatalError
)

func (e LinkEvent) String() string {
	switch e {
	case LinkConnected:
		return "connected"
	case LinkDisconnected:
		return "disconnected"
	case LinkFatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// State is the coordinator lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateInterfaceUp
	StateWaitingOnProvisioning
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInterfaceUp:
		return "interface_up"
	case StateWaitingOnProvisioning:
		return "waiting_on_provisioning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
