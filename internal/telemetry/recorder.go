package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/fatal"
	"github.com/nerrad567/gray-logic-node/internal/statusbus"
)

// Writer stores status history. *influxdb.Client implements it.
type Writer interface {
	WriteStatus(nodeID, channel, value string, code int, at time.Time)
	WriteEvent(nodeID, kind, detail string, at time.Time)
	Flush()
}

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Recorder.
type Options struct {
	Bus    *statusbus.Bus
	Writer Writer
	NodeID string
	Logger Logger

	WaitTimeout time.Duration
	ReadTimeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type sample struct {
	value string
	code  int
}

// Recorder writes status changes to a Writer.
type Recorder struct {
	opts Options
	sub  *statusbus.Subscriber

	// Owned by the Run goroutine.
	last map[statusbus.ChannelID]sample
}

// New subscribes a Recorder to every status channel.
func New(opts Options) (*Recorder, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("telemetry: bus is required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("telemetry: writer is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recorder{
		opts: opts,
		sub:  opts.Bus.Subscribe("telemetry", opts.Bus.Network, opts.Bus.Provisioning, opts.Bus.Transport),
		last: make(map[statusbus.ChannelID]sample, 3),
	}, nil
}

// Run records the initial value of every channel, then each change, until
// ctx ends. Pending points are flushed on return.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.opts.Writer.Flush()

	r.recordAll()
	for {
		id, err := r.sub.Wait(ctx, r.opts.WaitTimeout)
		switch {
		case err == nil:
			r.record(id)
		case errors.Is(err, statusbus.ErrTimeout):
			r.recordAll()
		case ctx.Err() != nil:
			return nil
		default:
			r.opts.Logger.Warn("waiting for status failed", "error", err)
		}
	}
}

func (r *Recorder) recordAll() {
	r.record(statusbus.ChannelNetwork)
	r.record(statusbus.ChannelProvisioning)
	r.record(statusbus.ChannelTransport)
}

func (r *Recorder) record(id statusbus.ChannelID) {
	s, err := r.read(id)
	if err != nil {
		r.opts.Logger.Warn("reading status failed", "channel", string(id), "error", err)
		return
	}
	if prev, ok := r.last[id]; ok && prev == s {
		return
	}
	r.last[id] = s
	r.opts.Writer.WriteStatus(r.opts.NodeID, string(id), s.value, s.code, r.opts.Now())
	r.opts.Logger.Debug("status recorded", "channel", string(id), "value", s.value)
}

func (r *Recorder) read(id statusbus.ChannelID) (sample, error) {
	switch id {
	case statusbus.ChannelNetwork:
		v, err := r.opts.Bus.Network.Read(r.opts.ReadTimeout)
		return sample{v.String(), int(v)}, err
	case statusbus.ChannelProvisioning:
		v, err := r.opts.Bus.Provisioning.Read(r.opts.ReadTimeout)
		return sample{v.String(), int(v)}, err
	case statusbus.ChannelTransport:
		v, err := r.opts.Bus.Transport.Read(r.opts.ReadTimeout)
		return sample{v.String(), int(v)}, err
	default:
		return sample{}, fmt.Errorf("unknown channel %q", id)
	}
}

// EscalationHook returns a fatal hook that records the escalation and
// flushes the writer.
func EscalationHook(w Writer, nodeID string) func(fatal.Event) {
	return func(ev fatal.Event) {
		detail := ev.Reason
		if ev.Err != nil {
			detail = fmt.Sprintf("%s: %v", ev.Reason, ev.Err)
		}
		w.WriteEvent(nodeID, string(ev.Kind), detail, time.Now())
		w.Flush()
	}
}
