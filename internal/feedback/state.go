package feedback

import (
	"time"

	"github.com/nerrad567/gray-logic-node/internal/statusbus"
)

// UIState is the coordinator's view of the node. It is owned by the
// coordinator loop and never shared.
type UIState struct {
	Network            statusbus.NetworkStatus
	Provisioning       statusbus.ProvisioningStatus
	TransportConnected bool
}

// PatternKind is what an LED does.
type PatternKind int

const (
	PatternOff PatternKind = iota
	PatternOn
	PatternBlink
)

// Pattern is the presentation of one LED.
type Pattern struct {
	Kind   PatternKind
	Period time.Duration
}

// ConnectivityPattern returns the connectivity LED pattern for s.
func ConnectivityPattern(s UIState) Pattern {
	if s.TransportConnected {
		return Pattern{Kind: PatternOn}
	}
	return Pattern{Kind: PatternOff}
}

// ProvisioningPattern returns the provisioning LED pattern for s.
func ProvisioningPattern(s UIState, fast, slow time.Duration) Pattern {
	switch s.Provisioning {
	case statusbus.ProvisioningInProgress:
		return Pattern{Kind: PatternBlink, Period: slow}
	case statusbus.ProvisioningCompleted:
		if s.Network == statusbus.NetworkConnected {
			return Pattern{Kind: PatternOn}
		}
		return Pattern{Kind: PatternBlink, Period: fast}
	default:
		return Pattern{Kind: PatternBlink, Period: fast}
	}
}
