package provisioning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/fatal"
	"github.com/nerrad567/gray-logic-node/internal/statusbus"
)

// ProtocolService runs the provisioning protocol.
type ProtocolService interface {
	// Init registers the event handler. The handler may be called from
	// any goroutine.
	Init(ctx context.Context, handler func(Event)) error

	// Start begins provisioning or reports that it is not needed.
	Start(ctx context.Context) (StartResult, error)
}

// CredentialStore reports whether network credentials are already stored.
type CredentialStore interface {
	IsEmpty(ctx context.Context) (bool, error)
}

// InterfaceManager brings the network interface up so the access point
// can start.
type InterfaceManager interface {
	BringInterfacesUp(ctx context.Context, persist bool) error
}

// PowerSaver toggles radio power save.
type PowerSaver interface {
	SetPowerSave(ctx context.Context, enabled bool) error
}

// Announcer makes the node discoverable and returns a withdraw function.
type Announcer interface {
	Announce(ctx context.Context) (func(), error)
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

// Discoverability configures the post-completion window.
type Discoverability struct {
	Enabled   bool
	Duration  time.Duration
	PowerSave PowerSaver
	Announcer Announcer
}

// Options configures a Coordinator.
type Options struct {
	Bus        *statusbus.Bus
	Protocol   ProtocolService
	Store      CredentialStore
	Interfaces InterfaceManager
	Escalator  fatal.Escalator
	Logger     Logger

	PublishTimeout time.Duration

	// EscalateOnPublishFailure turns a failed publish into a fatal error.
	EscalateOnPublishFailure bool

	Discoverability Discoverability
}

const eventBuffer = 16

// restoreTimeout bounds re-enabling power save during shutdown.
const restoreTimeout = 5 * time.Second

// Coordinator is the provisioning coordinator.
type Coordinator struct {
	opts   Options
	events chan Event

	// stopped is closed once nothing reads events any more.
	stopped  chan struct{}
	stopOnce sync.Once

	// Owned by the Run goroutine.
	published bool
	last      statusbus.ProvisioningStatus
}

// New validates opts.
func New(opts Options) (*Coordinator, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("provisioning: bus is required")
	}
	if opts.Protocol == nil {
		return nil, fmt.Errorf("provisioning: protocol service is required")
	}
	if opts.Escalator == nil {
		return nil, fmt.Errorf("provisioning: escalator is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = time.Second
	}
	return &Coordinator{
		opts:    opts,
		events:  make(chan Event, eventBuffer),
		stopped: make(chan struct{}),
	}, nil
}

// Run drives provisioning to completion.
//
// Returns:
//   - error: nil once provisioning is resolved or ctx ends,
//     fatal.ErrEscalated after an escalation or planned restart
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.stop()

	if err := c.advance(statusbus.ProvisioningNotStarted); err != nil {
		return err
	}

	if c.opts.Interfaces != nil {
		if err := c.opts.Interfaces.BringInterfacesUp(ctx, true); err != nil {
			return c.escalate("bringing interface up", err)
		}
	}

	err := c.opts.Protocol.Init(ctx, func(ev Event) { c.deliver(ctx, ev) })
	if err != nil {
		return c.escalate("initialising provisioning service", err)
	}

	if c.hasCredentials(ctx) {
		c.opts.Logger.Info("credentials found, skipping provisioning")
		return c.advance(statusbus.ProvisioningCompleted)
	}

	result, err := c.opts.Protocol.Start(ctx)
	if err != nil {
		return c.escalate("starting provisioning service", err)
	}
	if result == StartAlreadyProvisioned {
		c.opts.Logger.Info("provisioning service reports node already provisioned")
		return c.advance(statusbus.ProvisioningCompleted)
	}

	c.opts.Logger.Info("provisioning started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			done, err := c.handle(ctx, ev)
			if err != nil || done {
				return err
			}
		}
	}
}

// deliver queues ev for the event loop. Once the loop has stopped the
// event is logged and dropped so the protocol service never stalls.
func (c *Coordinator) deliver(ctx context.Context, ev Event) {
	select {
	case <-c.stopped:
		c.opts.Logger.Debug("dropping provisioning event", "event", ev.String())
		return
	default:
	}
	select {
	case c.events <- ev:
	case <-c.stopped:
		c.opts.Logger.Debug("dropping provisioning event", "event", ev.String())
	case <-ctx.Done():
	}
}

func (c *Coordinator) stop() {
	c.stopOnce.Do(func() { close(c.stopped) })
}

func (c *Coordinator) hasCredentials(ctx context.Context) bool {
	if c.opts.Store == nil {
		return false
	}
	empty, err := c.opts.Store.IsEmpty(ctx)
	if err != nil {
		c.opts.Logger.Warn("checking credential store failed, provisioning anyway", "error", err)
		return false
	}
	return !empty
}

// handle applies one protocol event. done reports that the coordinator
// has nothing left to do.
func (c *Coordinator) handle(ctx context.Context, ev Event) (done bool, err error) {
	c.opts.Logger.Debug("provisioning event", "event", ev.String())

	switch ev {
	case EventStarted:
		return false, c.advance(statusbus.ProvisioningInProgress)
	case EventClientConnected:
		c.opts.Logger.Info("provisioning client connected")
	case EventClientDisconnected:
		c.opts.Logger.Info("provisioning client disconnected")
	case EventCredentialsReceived:
		c.opts.Logger.Info("provisioning credentials received")
	case EventCompleted:
		if err := c.advance(statusbus.ProvisioningCompleted); err != nil {
			return true, err
		}
		c.opts.Logger.Info("provisioning completed")
		c.stop()
		return true, c.discoverable(ctx)
	case EventRebootNeeded:
		c.opts.Escalator.Restart("provisioning: unprovisioned reboot needed")
		return true, fatal.ErrEscalated
	case EventFatalError:
		return true, c.escalate("provisioning service reported fatal error", nil)
	default:
		c.opts.Logger.Warn("unknown provisioning event", "event", int(ev))
	}
	return false, nil
}

// advance publishes status if it moves the visible status forward.
// A failed publish is logged once and, when configured, escalated.
func (c *Coordinator) advance(status statusbus.ProvisioningStatus) error {
	if c.published && status <= c.last {
		return nil
	}
	err := c.opts.Bus.Provisioning.Publish(status, c.opts.PublishTimeout)
	switch {
	case err == nil:
		c.published = true
		c.last = status
		c.opts.Logger.Info("provisioning status", "status", status.String())
		return nil
	case errors.Is(err, statusbus.ErrClosed):
		return nil
	default:
		c.opts.Logger.Error("publishing provisioning status failed", "status", status.String(), "error", err)
		if c.opts.EscalateOnPublishFailure {
			return c.escalate("publishing "+status.String(), err)
		}
		return nil
	}
}

// discoverable holds the post-provisioning window. Power save failures
// escalate; an mDNS failure only costs discoverability.
func (c *Coordinator) discoverable(ctx context.Context) error {
	d := c.opts.Discoverability
	if !d.Enabled || d.Duration <= 0 {
		return nil
	}

	if d.PowerSave != nil {
		if err := d.PowerSave.SetPowerSave(ctx, false); err != nil {
			return c.escalate("disabling power save", err)
		}
	}

	var withdraw func()
	if d.Announcer != nil {
		stop, err := d.Announcer.Announce(ctx)
		if err != nil {
			c.opts.Logger.Warn("mDNS announcement failed", "error", err)
		} else {
			withdraw = stop
		}
	}

	c.opts.Logger.Info("discoverable", "duration", d.Duration.String())
	t := time.NewTimer(d.Duration)
	select {
	case <-t.C:
	case <-ctx.Done():
		t.Stop()
	}

	if withdraw != nil {
		withdraw()
	}

	if d.PowerSave != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
		defer cancel()
		if err := d.PowerSave.SetPowerSave(rctx, true); err != nil {
			return c.escalate("re-enabling power save", err)
		}
	}
	return nil
}

func (c *Coordinator) escalate(reason string, err error) error {
	c.opts.Escalator.Fatal("provisioning: "+reason, err)
	return fatal.ErrEscalated
}
