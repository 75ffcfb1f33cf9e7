package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-node/internal/fatal"
	"github.com/nerrad567/gray-logic-node/internal/statusbus"
	"github.com/nerrad567/gray-logic-node/internal/workq"
)

// PayloadPublisher sends button payloads over the application transport.
type PayloadPublisher interface {
	PublishPayload(ctx context.Context, p Payload) error
}

// CredentialResetter deletes stored credentials.
type CredentialResetter interface {
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) (int, error)
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
	Bus         *statusbus.Bus
	Escalator   fatal.Escalator
	Transport   PayloadPublisher
	Credentials CredentialResetter
	Logger      Logger

	// ConnectivityLED and ProvisioningLED may be nil on boards without them.
	ConnectivityLED Output
	ProvisioningLED Output
	Clock           Clock

	FastBlink      time.Duration
	SlowBlink      time.Duration
	WaitTimeout    time.Duration
	ReadTimeout    time.Duration
	PayloadTimeout time.Duration

	// Uptime reports time since boot for payload text.
	Uptime func() time.Duration
}

// resetTimeout bounds the credential delete before the restart.
const resetTimeout = 5 * time.Second

// Coordinator is the feedback coordinator.
type Coordinator struct {
	opts Options
	sub  *statusbus.Subscriber
	work *workq.Queue

	connectivity *Blinker
	provisioning *Blinker

	publishItem *workq.Item
	resetItem   *workq.Item

	// Owned by the Run loop.
	state UIState
}

// New validates opts and subscribes to every status channel.
func New(opts Options) (*Coordinator, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("feedback: bus is required")
	}
	if opts.Escalator == nil {
		return nil, fmt.Errorf("feedback: escalator is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.FastBlink <= 0 {
		opts.FastBlink = 200 * time.Millisecond
	}
	if opts.SlowBlink <= 0 {
		opts.SlowBlink = time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	if opts.PayloadTimeout <= 0 {
		opts.PayloadTimeout = time.Second
	}
	if opts.Uptime == nil {
		start := time.Now()
		opts.Uptime = func() time.Duration { return time.Since(start) }
	}

	c := &Coordinator{
		opts: opts,
		sub:  opts.Bus.Subscribe("feedback", opts.Bus.Network, opts.Bus.Provisioning, opts.Bus.Transport),
		work: workq.New(workq.DefaultCapacity),
		state: UIState{
			Network:      statusbus.NetworkDisconnected,
			Provisioning: statusbus.ProvisioningNotStarted,
		},
		connectivity: NewBlinker("connectivity", opts.ConnectivityLED, opts.Clock, opts.Logger),
		provisioning: NewBlinker("provisioning", opts.ProvisioningLED, opts.Clock, opts.Logger),
	}
	c.publishItem = workq.NewItem("publish-button", c.publishPressed)
	c.resetItem = workq.NewItem("reset-button", c.resetPressed)
	return c, nil
}

// PressPublish records a publish button press. Safe from an edge handler.
func (c *Coordinator) PressPublish() bool {
	return c.work.Submit(c.publishItem)
}

// PressReset records a reset button press. Safe from an edge handler.
func (c *Coordinator) PressReset() bool {
	return c.work.Submit(c.resetItem)
}

// State returns the current UI state. Only meaningful from the Run loop
// or after Run has returned.
func (c *Coordinator) State() UIState {
	return c.state
}

// Run drives the LEDs and the button worker until ctx ends.
func (c *Coordinator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.work.Run(gctx) })
	g.Go(func() error { return c.loop(gctx) })
	err := g.Wait()

	c.connectivity.Stop()
	c.provisioning.Stop()
	return err
}

func (c *Coordinator) loop(ctx context.Context) error {
	c.present(true, true)
	c.refresh()

	for {
		id, err := c.sub.Wait(ctx, c.opts.WaitTimeout)
		switch {
		case err == nil:
			c.handle(id)
		case errors.Is(err, statusbus.ErrTimeout):
			// A lost notification only delays the update.
			c.refresh()
		case ctx.Err() != nil:
			return nil
		default:
			c.opts.Logger.Warn("waiting for status failed", "error", err)
		}
	}
}

// refresh re-reads every channel.
func (c *Coordinator) refresh() {
	for _, id := range []statusbus.ChannelID{
		statusbus.ChannelNetwork,
		statusbus.ChannelProvisioning,
		statusbus.ChannelTransport,
	} {
		c.handle(id)
	}
}

// handle reads channel id and updates the LEDs that depend on it.
func (c *Coordinator) handle(id statusbus.ChannelID) {
	next := c.state
	switch id {
	case statusbus.ChannelNetwork:
		v, err := c.opts.Bus.Network.Read(c.opts.ReadTimeout)
		if err != nil {
			c.readFailed(id, err)
			return
		}
		next.Network = v
	case statusbus.ChannelProvisioning:
		v, err := c.opts.Bus.Provisioning.Read(c.opts.ReadTimeout)
		if err != nil {
			c.readFailed(id, err)
			return
		}
		next.Provisioning = v
	case statusbus.ChannelTransport:
		v, err := c.opts.Bus.Transport.Read(c.opts.ReadTimeout)
		if err != nil {
			c.readFailed(id, err)
			return
		}
		next.TransportConnected = v == statusbus.TransportConnected
	default:
		c.opts.Logger.Warn("status from unknown channel", "channel", string(id))
		return
	}

	prev := c.state
	if next == prev {
		return
	}
	c.state = next
	c.opts.Logger.Debug("ui state",
		"network", next.Network.String(),
		"provisioning", next.Provisioning.String(),
		"transport_connected", next.TransportConnected,
	)

	connectivityChanged := next.TransportConnected != prev.TransportConnected
	provisioningChanged := next.Provisioning != prev.Provisioning || next.Network != prev.Network
	c.present(connectivityChanged, provisioningChanged)
}

func (c *Coordinator) present(connectivity, provisioning bool) {
	if connectivity {
		c.connectivity.Apply(ConnectivityPattern(c.state))
	}
	if provisioning {
		c.provisioning.Apply(ProvisioningPattern(c.state, c.opts.FastBlink, c.opts.SlowBlink))
	}
}

func (c *Coordinator) readFailed(id statusbus.ChannelID, err error) {
	c.opts.Logger.Warn("reading status failed", "channel", string(id), "error", err)
}

// publishPressed runs on the button worker.
func (c *Coordinator) publishPressed(ctx context.Context) {
	status, err := c.opts.Bus.Transport.Read(c.opts.ReadTimeout)
	if err != nil || status != statusbus.TransportConnected || c.opts.Transport == nil {
		c.opts.Logger.Warn("publish button pressed but transport not connected")
		return
	}

	payload := NewPayload(c.opts.Uptime(), time.Now())
	pctx, cancel := context.WithTimeout(ctx, c.opts.PayloadTimeout)
	defer cancel()

	if err := c.opts.Transport.PublishPayload(pctx, payload); err != nil {
		c.opts.Logger.Warn("publishing button payload failed", "id", payload.ID, "error", err)
		return
	}
	c.opts.Logger.Info("button payload published", "id", payload.ID, "message", payload.Message)
}

// resetPressed runs on the button worker. The restart happens even if
// the delete fails.
func (c *Coordinator) resetPressed(ctx context.Context) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetTimeout)
	defer cancel()

	if c.opts.Credentials != nil {
		c.logCredentials(rctx, "before reset")
		if n, err := c.opts.Credentials.DeleteAll(rctx); err != nil {
			c.opts.Logger.Error("deleting credentials failed", "error", err)
		} else {
			c.opts.Logger.Info("credentials deleted", "count", n)
		}
		c.logCredentials(rctx, "after reset")
	}

	c.opts.Escalator.Restart("credentials reset by user")
}

func (c *Coordinator) logCredentials(ctx context.Context, when string) {
	n, err := c.opts.Credentials.Count(ctx)
	if err != nil {
		c.opts.Logger.Warn("counting credentials failed", "when", when, "error", err)
		return
	}
	c.opts.Logger.Info("stored credentials", "when", when, "present", n > 0, "count", n)
}
