package network

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/fatal"
	"github.com/nerrad567/gray-logic-node/internal/statusbus"
)

// ConnectivityManager is the host service that owns the radio.
type ConnectivityManager interface {
	// BringInterfacesUp sets the managed interface administratively up.
	BringInterfacesUp(ctx context.Context, persist bool) error

	// RequestConnect asks the manager to associate using stored credentials.
	RequestConnect(ctx context.Context, persist bool) error

	// Subscribe registers handler for link events. The handler may be
	// called from any goroutine.
	Subscribe(ctx context.Context, handler func(LinkEvent)) error

	// ResendStatus replays the current link status to the handler.
	ResendStatus() error
}

// AddressAcquirer starts dynamic address acquisition on an interface.
type AddressAcquirer interface {
	Start(iface string) error
}

// Logger defines the logging interface used by the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Coordinator.
type Options struct {
	Bus        *statusbus.Bus
	Manager    ConnectivityManager
	Addressing AddressAcquirer
	Escalator  fatal.Escalator
	Logger     Logger

	Interface string

	// RequireProvisioning holds the connect request until provisioning completes.
	RequireProvisioning bool

	// ResendOnStart asks the manager to replay link status after connecting.
	ResendOnStart bool

	// WaitTimeout bounds each idle wait; on expiry the provisioning channel
	// is re-read so a missed notification only delays the gate.
	WaitTimeout    time.Duration
	PublishTimeout time.Duration
	ReadTimeout    time.Duration
}

const linkEventBuffer = 16

// linkMsg is a link event stamped with the gate state at arrival.
type linkMsg struct {
	ev    LinkEvent
	gated bool
}

// Coordinator is the network coordinator. Create with New, run with Run.
type Coordinator struct {
	opts  Options
	sub   *statusbus.Subscriber
	links chan linkMsg
	fatal chan struct{}
	state atomic.Int32

	// gated is written only by the Run goroutine.
	gated atomic.Bool

	// Owned by the Run goroutine.
	published bool
	last      statusbus.NetworkStatus
}

// New validates opts and subscribes to the provisioning channel.
//
// Subscribing here, before any coordinator runs, means a Completed
// published early is still delivered.
//
// Returns:
//   - *Coordinator: Ready to Run
//   - error: If a required dependency is missing
func New(opts Options) (*Coordinator, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("network: bus is required")
	}
	if opts.Manager == nil {
		return nil, fmt.Errorf("network: connectivity manager is required")
	}
	if opts.Escalator == nil {
		return nil, fmt.Errorf("network: escalator is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 5 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}

	c := &Coordinator{
		opts:  opts,
		sub:   opts.Bus.Subscribe("network", opts.Bus.Provisioning),
		links: make(chan linkMsg, linkEventBuffer),
		fatal: make(chan struct{}, 1),
	}
	c.gated.Store(opts.RequireProvisioning)
	return c, nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	if old := State(c.state.Swap(int32(s))); old != s {
		c.opts.Logger.Debug("network state", "from", old.String(), "to", s.String())
	}
}

// Run drives the coordinator until ctx ends or it escalates.
//
// Returns:
//   - error: nil on shutdown, fatal.ErrEscalated after escalating
func (c *Coordinator) Run(ctx context.Context) error {
	c.setState(StateIdle)

	if err := c.opts.Manager.BringInterfacesUp(ctx, true); err != nil {
		return c.escalate("bringing interface up", err)
	}
	c.setState(StateInterfaceUp)
	c.opts.Logger.Info("interface up", "iface", c.opts.Interface)

	if err := c.opts.Manager.Subscribe(ctx, c.onLink); err != nil {
		return c.escalate("registering link events", err)
	}

	if c.gated.Load() {
		c.setState(StateWaitingOnProvisioning)
		c.opts.Logger.Info("waiting on provisioning before connecting")
		// Completed may already be on the channel.
		if err := c.checkProvisioning(ctx); err != nil {
			return err
		}
	} else if err := c.connect(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(c.opts.WaitTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-c.fatal:
			return c.escalate("connectivity manager reported fatal error", nil)

		case msg := <-c.links:
			c.handleLink(msg)

		case <-c.sub.C():
			if err := c.checkProvisioning(ctx); err != nil {
				return err
			}

		case <-timer.C:
			if c.gated.Load() {
				c.opts.Logger.Debug("still waiting on provisioning")
				if err := c.checkProvisioning(ctx); err != nil {
					return err
				}
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.opts.WaitTimeout)
	}
}

// checkProvisioning reads the provisioning channel and opens the gate on
// Completed. The gate opens once; later reads are ignored.
func (c *Coordinator) checkProvisioning(ctx context.Context) error {
	if !c.gated.Load() {
		return nil
	}
	status, err := c.opts.Bus.Provisioning.Read(c.opts.ReadTimeout)
	if err != nil {
		c.opts.Logger.Warn("reading provisioning status failed", "error", err)
		return nil
	}
	if status != statusbus.ProvisioningCompleted {
		c.opts.Logger.Debug("provisioning not complete", "status", status.String())
		return nil
	}

	c.gated.Store(false)
	c.opts.Logger.Info("provisioning completed, releasing network gate")
	return c.connect(ctx)
}

func (c *Coordinator) connect(ctx context.Context) error {
	c.setState(StateConnecting)
	if err := c.opts.Manager.RequestConnect(ctx, true); err != nil {
		return c.escalate("requesting connect", err)
	}
	if c.opts.ResendOnStart {
		if err := c.opts.Manager.ResendStatus(); err != nil {
			c.opts.Logger.Warn("requesting link status replay failed", "error", err)
		}
	}
	return nil
}

// onLink is the manager's link handler. It never blocks: ResendStatus
// calls it on the Run goroutine. A fatal error is latched on its own
// channel; when the queue is full the oldest link state is dropped.
func (c *Coordinator) onLink(ev LinkEvent) {
	if ev == LinkFatalError {
		select {
		case c.fatal <- struct{}{}:
		default:
		}
		return
	}

	msg := linkMsg{ev: ev, gated: c.gated.Load()}
	select {
	case c.links <- msg:
		return
	default:
	}

	select {
	case old := <-c.links:
		c.opts.Logger.Debug("link event queue full, dropping oldest", "event", old.ev.String())
	default:
	}
	select {
	case c.links <- msg:
	default:
		c.opts.Logger.Warn("dropping link event", "event", ev.String())
	}
}

// handleLink applies one link event. Events that arrived while the gate
// was closed are dropped even if the gate has opened since.
func (c *Coordinator) handleLink(msg linkMsg) {
	ev := msg.ev
	if msg.gated || c.gated.Load() {
		c.opts.Logger.Debug("ignoring link event while provisioning", "event", ev.String())
		return
	}

	switch ev {
	case LinkConnected:
		c.setState(StateConnected)
		if c.opts.Addressing != nil {
			if err := c.opts.Addressing.Start(c.opts.Interface); err != nil {
				c.opts.Logger.Warn("starting address acquisition failed", "iface", c.opts.Interface, "error", err)
			}
		}
		c.publish(statusbus.NetworkConnected)
	case LinkDisconnected:
		c.setState(StateDisconnected)
		c.publish(statusbus.NetworkDisconnected)
	default:
		c.opts.Logger.Warn("unknown link event", "event", int(ev))
	}
}

// publish sends status when it differs from the last successful publish.
func (c *Coordinator) publish(status statusbus.NetworkStatus) {
	if c.published && c.last == status {
		return
	}
	if err := c.opts.Bus.Network.Publish(status, c.opts.PublishTimeout); err != nil {
		if errors.Is(err, statusbus.ErrClosed) {
			return
		}
		c.opts.Logger.Error("publishing network status failed", "status", status.String(), "error", err)
		return
	}
	c.published = true
	c.last = status
	c.opts.Logger.Info("network status", "status", status.String())
}

func (c *Coordinator) escalate(reason string, err error) error {
	c.opts.Escalator.Fatal("network: "+reason, err)
	return fatal.ErrEscalated
}
