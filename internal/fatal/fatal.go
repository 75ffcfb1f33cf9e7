package fatal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Escalator is the abstract escalation action used by every coordinator.
type Escalator interface {
	// Fatal handles an unrecoverable error. It does not return in production.
	Fatal(reason string, err error)

	// Restart performs a planned restart. It does not return in production.
	Restart(reason string)
}

// Kind distinguishes error escalations from planned restarts.
type Kind string

const (
	KindFatal   Kind = "fatal"
	KindRestart Kind = "restart"
)

// Event describes the escalation passed to hooks.
type Event struct {
	Kind   Kind
	Reason string
	Err    error
}

// Logger is the logging surface the handler needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// Options configures a Handler.
type Options struct {
	// Mode is config.FatalModeReboot, FatalModeExit or FatalModeHalt.
	Mode     string
	ExitCode int

	Logger Logger

	// Flush writes buffered logs to stable storage (logging.Logger.Sync).
	Flush func() error

	// Reboot restarts the machine. Defaults to SystemReboot.
	Reboot func() error

	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)

	// Park blocks the calling goroutine forever. Defaults to select{}.
	// Tests replace it so escalation returns.
	Park func()
}

// Handler is the production Escalator.
type Handler struct {
	opts Options

	once    sync.Once
	hooksMu sync.Mutex
	hooks   []func(Event)
}

// NewHandler returns a Handler with defaults filled in.
func NewHandler(opts Options) *Handler {
	if opts.Mode == "" {
		opts.Mode = config.FatalModeReboot
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Flush == nil {
		opts.Flush = func() error { return nil }
	}
	if opts.Reboot == nil {
		opts.Reboot = SystemReboot
	}
	if opts.Exit == nil {
		opts.Exit = exitProcess
	}
	if opts.Park == nil {
		opts.Park = func() { select {} }
	}
	return &Handler{opts: opts}
}

// OnEscalate registers a hook run once, before the final action.
// Hooks must not call back into the Handler.
func (h *Handler) OnEscalate(hook func(Event)) {
	h.hooksMu.Lock()
	h.hooks = append(h.hooks, hook)
	h.hooksMu.Unlock()
}

// Fatal implements Escalator.
func (h *Handler) Fatal(reason string, err error) {
	h.escalate(Event{Kind: KindFatal, Reason: reason, Err: err})
}

// Restart implements Escalator.
func (h *Handler) Restart(reason string) {
	h.escalate(Event{Kind: KindRestart, Reason: reason})
}

func (h *Handler) escalate(ev Event) {
	acted := false
	h.once.Do(func() {
		acted = true
		h.act(ev)
	})
	if !acted {
		h.opts.Logger.Warn("escalation already in progress, parking caller",
			"kind", string(ev.Kind), "reason", ev.Reason)
	}
	h.opts.Park()
}

func (h *Handler) act(ev Event) {
	h.hooksMu.Lock()
	hooks := append([]func(Event){}, h.hooks...)
	h.hooksMu.Unlock()
	for _, hook := range hooks {
		hook(ev)
	}

	if ev.Kind == KindFatal {
		h.opts.Logger.Error("fatal error, escalating", "reason", ev.Reason, "error", ev.Err, "mode", h.opts.Mode)
	} else {
		h.opts.Logger.Info("planned restart", "reason", ev.Reason, "mode", h.opts.Mode)
	}
	if err := h.opts.Flush(); err != nil {
		h.opts.Logger.Warn("flushing logs before escalation failed", "error", err)
	}

	switch h.opts.Mode {
	case config.FatalModeHalt:
		return
	case config.FatalModeExit:
		h.opts.Exit(h.opts.ExitCode)
	default:
		if err := h.opts.Reboot(); err != nil {
			// Without CAP_SYS_BOOT the supervisor has to restart us instead.
			h.opts.Logger.Error("reboot failed, exiting instead", "error", fmt.Errorf("fatal: %w", err))
			_ = h.opts.Flush() //nolint:errcheck // already reported above
			h.opts.Exit(h.opts.ExitCode)
		}
	}
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Info(string, ...any)  {}

// ErrEscalated is returned by coordinator loops that stopped because they
// escalated. In production the escalation never returns, so this is only
// observed under a Recorder.
var ErrEscalated = errors.New("fatal: escalated")
