package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-node/internal/feedback"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/statusbus"
	"github.com/nerrad567/gray-logic-node/internal/workq"
)

// Client is the broker session. *mqtt.Client implements it.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
	IsConnected() bool
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	Close() error
}

// Logger defines the logging interface used by the service.
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

// Options configures a Service.
type Options struct {
	Bus    *statusbus.Bus
	Client Client
	Topics mqtt.Topics
	Logger Logger

	// MirrorStatus publishes every status channel to a retained topic.
	MirrorStatus bool

	PublishTimeout time.Duration
	ReadTimeout    time.Duration

	// AttemptTimeout bounds one connect attempt.
	AttemptTimeout time.Duration

	// RetryInitial and RetryMax bound the backoff between failed attempts.
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// Service owns the broker session and its TransportStatus.
type Service struct {
	opts Options
	sub  *statusbus.Subscriber
	work *workq.Queue

	mirrors   map[statusbus.ChannelID]*workq.Item
	connected *workq.Item
	resync    chan struct{}

	// statusMu serialises TransportStatus publishes from paho callbacks
	// and the Run loop.
	statusMu  sync.Mutex
	published bool
	last      statusbus.TransportStatus
}

// New validates opts and subscribes to the status bus.
//
// Returns:
//   - *Service: Ready to Run
//   - error: If a required dependency is missing
func New(opts Options) (*Service, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("transport: bus is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("transport: client is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 30 * time.Second
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = time.Second
	}
	if opts.RetryMax < opts.RetryInitial {
		opts.RetryMax = opts.RetryInitial
	}

	s := &Service{
		opts:    opts,
		sub:     opts.Bus.Subscribe("transport", opts.Bus.Network, opts.Bus.Provisioning, opts.Bus.Transport),
		work:    workq.New(workq.DefaultCapacity),
		mirrors: make(map[statusbus.ChannelID]*workq.Item, 3),
		resync:  make(chan struct{}, 1),
	}
	for _, id := range []statusbus.ChannelID{
		statusbus.ChannelNetwork,
		statusbus.ChannelProvisioning,
		statusbus.ChannelTransport,
	} {
		s.mirrors[id] = workq.NewItem("mirror-"+string(id), func(ctx context.Context) {
			s.mirror(ctx, id)
		})
	}
	// The loop must not publish to a channel it is itself subscribed to.
	s.connected = workq.NewItem("transport-connected", func(context.Context) {
		if s.opts.Client.IsConnected() {
			s.setStatus(statusbus.TransportConnected)
		}
	})
	return s, nil
}

// Run connects once the network is up and keeps TransportStatus current
// until ctx ends. The session is closed on return.
func (s *Service) Run(ctx context.Context) error {
	s.opts.Client.SetOnConnect(s.onConnect)
	s.opts.Client.SetOnDisconnect(s.onDisconnect)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.work.Run(gctx) })
	g.Go(func() error { return s.loop(gctx) })
	err := g.Wait()

	if cerr := s.opts.Client.Close(); cerr != nil {
		s.opts.Logger.Warn("closing broker session failed", "error", cerr)
	}
	s.drain()
	s.setStatus(statusbus.TransportDisconnected)
	return err
}

func (s *Service) drain() {
	for {
		select {
		case <-s.sub.C():
		default:
			return
		}
	}
}

// loop always drains bus notifications; connect attempts run on their own
// goroutine so a slow broker never backs up the status publishers.
func (s *Service) loop(ctx context.Context) error {
	results := make(chan error, 1)
	b := s.newBackoff()

	var (
		networkUp     bool
		established   bool
		connecting    bool
		attempts      int
		cancelAttempt context.CancelFunc = func() {}
		retry         *time.Timer
		retryC        <-chan time.Time
	)
	defer func() {
		cancelAttempt()
		if retry != nil {
			retry.Stop()
		}
	}()

	attempt := func() {
		attempts++
		connecting = true
		actx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
		cancelAttempt = cancel
		s.opts.Logger.Info("connecting to broker", "attempt", attempts)
		// At most one attempt is outstanding, so the buffered send never blocks.
		go func() { results <- s.opts.Client.Connect(actx) }()
	}
	stopRetry := func() {
		if retry != nil {
			retry.Stop()
			retry, retryC = nil, nil
		}
	}
	checkNetwork := func() {
		v, err := s.opts.Bus.Network.Read(s.opts.ReadTimeout)
		if err != nil {
			s.opts.Logger.Warn("reading network status failed", "error", err)
			return
		}
		networkUp = v == statusbus.NetworkConnected
		switch {
		case established:
		case networkUp && !connecting && retry == nil:
			attempt()
		case !networkUp && connecting:
			// The attempt cannot succeed; start over when the link returns.
			cancelAttempt()
		case !networkUp:
			stopRetry()
			b.Reset()
		}
	}

	checkNetwork()
	for {
		select {
		case <-ctx.Done():
			return nil

		case id := <-s.sub.C():
			if id == statusbus.ChannelNetwork {
				checkNetwork()
			}
			s.requestMirror(id)

		case <-s.resync:
			for id := range s.mirrors {
				s.requestMirror(id)
			}

		case err := <-results:
			connecting = false
			cancelAttempt()
			if err == nil {
				established = true
				b.Reset()
				s.opts.Logger.Info("broker session established")
				s.work.Submit(s.connected)
				s.requestResync()
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if !networkUp {
				b.Reset()
				continue
			}
			delay := b.NextBackOff()
			s.opts.Logger.Warn("broker connect failed", "error", err, "retry_in", delay)
			retry = time.NewTimer(delay)
			retryC = retry.C

		case <-retryC:
			retry, retryC = nil, nil
			if networkUp && !established && !connecting {
				attempt()
			}
		}
	}
}

func (s *Service) newBackoff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.opts.RetryInitial),
		backoff.WithMaxInterval(s.opts.RetryMax),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.1),
		backoff.WithMaxElapsedTime(0),
	)
}

// onConnect runs on a paho goroutine for the first connect and every
// automatic reconnect.
func (s *Service) onConnect() {
	s.setStatus(statusbus.TransportConnected)
	s.requestResync()
}

func (s *Service) requestResync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

func (s *Service) onDisconnect(err error) {
	s.opts.Logger.Warn("broker connection lost", "error", err)
	s.setStatus(statusbus.TransportDisconnected)
}

// setStatus publishes v unless it is already the published value.
func (s *Service) setStatus(v statusbus.TransportStatus) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	if s.published && s.last == v {
		return
	}
	err := s.opts.Bus.Transport.Publish(v, s.opts.PublishTimeout)
	switch {
	case err == nil:
		s.published = true
		s.last = v
		s.opts.Logger.Info("transport status", "status", v.String())
	case errors.Is(err, statusbus.ErrClosed):
	default:
		s.opts.Logger.Warn("publishing transport status failed", "status", v.String(), "error", err)
	}
}

func (s *Service) requestMirror(id statusbus.ChannelID) {
	if !s.opts.MirrorStatus {
		return
	}
	if item, ok := s.mirrors[id]; ok {
		s.work.Submit(item)
	}
}

// statusMessage is the retained body of a status topic.
type statusMessage struct {
	Status    string    `json:"status"`
	Code      int       `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// mirror publishes the current value of channel id. It runs on the work
// queue so a slow broker never stalls the bus.
func (s *Service) mirror(ctx context.Context, id statusbus.ChannelID) {
	if !s.opts.Client.IsConnected() {
		return
	}
	msg, err := s.readStatus(id)
	if err != nil {
		s.opts.Logger.Warn("reading status for mirror failed", "channel", string(id), "error", err)
		return
	}
	msg.Timestamp = time.Now().UTC()
	body, err := json.Marshal(msg)
	if err != nil {
		s.opts.Logger.Error("encoding status failed", "channel", string(id), "error", err)
		return
	}

	pctx, cancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
	defer cancel()
	if err := s.opts.Client.Publish(pctx, s.opts.Topics.Status(string(id)), body, true); err != nil {
		s.opts.Logger.Warn("mirroring status failed", "channel", string(id), "error", err)
	}
}

func (s *Service) readStatus(id statusbus.ChannelID) (statusMessage, error) {
	switch id {
	case statusbus.ChannelNetwork:
		v, err := s.opts.Bus.Network.Read(s.opts.ReadTimeout)
		return statusMessage{Status: v.String(), Code: int(v)}, err
	case statusbus.ChannelProvisioning:
		v, err := s.opts.Bus.Provisioning.Read(s.opts.ReadTimeout)
		return statusMessage{Status: v.String(), Code: int(v)}, err
	case statusbus.ChannelTransport:
		v, err := s.opts.Bus.Transport.Read(s.opts.ReadTimeout)
		return statusMessage{Status: v.String(), Code: int(v)}, err
	default:
		return statusMessage{}, fmt.Errorf("unknown channel %q", id)
	}
}

// PublishPayload sends a button payload to the node's payload topic.
// It implements feedback.PayloadPublisher.
func (s *Service) PublishPayload(ctx context.Context, p feedback.Payload) error {
	if !s.opts.Client.IsConnected() {
		return ErrNotConnected
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	if err := s.opts.Client.Publish(ctx, s.opts.Topics.Payload(), body, false); err != nil {
		return fmt.Errorf("publishing payload %s: %w", p.ID, err)
	}
	return nil
}

var _ feedback.PayloadPublisher = (*Service)(nil)
