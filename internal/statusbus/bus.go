package statusbus

import "sync/atomic"

// DefaultQueueSize is the per-subscriber backlog when Options leaves it unset.
const DefaultQueueSize = 4

// Options configures a Bus.
type Options struct {
	// QueueSize is the notification backlog of each subscriber.
	QueueSize int
}

// Bus holds the node's three status channels.
//
// Channels start at NetworkDisconnected, ProvisioningNotStarted and
// TransportDisconnected and live for the whole process.
type Bus struct {
	Network      *Channel[NetworkStatus]
	Provisioning *Channel[ProvisioningStatus]
	Transport    *Channel[TransportStatus]

	queueSize int
	closed    atomic.Bool
}

// New creates a bus with all channels at their initial values.
func New(opts Options) *Bus {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	b := &Bus{queueSize: opts.QueueSize}
	b.Network = newChannel(ChannelNetwork, NetworkDisconnected, b)
	b.Provisioning = newChannel(ChannelProvisioning, ProvisioningNotStarted, b)
	b.Transport = newChannel(ChannelTransport, TransportDisconnected, b)
	return b
}

// Subscribe registers a subscriber on the given channels.
//
// Subscriptions should be made before the publishing coordinators start;
// a late subscriber only sees values through Read, not past notifications.
func (b *Bus) Subscribe(name string, channels ...Observable) *Subscriber {
	s := &Subscriber{
		name:  name,
		queue: make(chan ChannelID, b.queueSize),
	}
	for _, c := range channels {
		c.attach(s)
	}
	return s
}

// Close stops the bus from accepting publishes. Reads keep working.
func (b *Bus) Close() {
	b.closed.Store(true)
}

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool {
	return b.closed.Load()
}
