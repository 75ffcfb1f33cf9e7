package addressing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/process"
)

// ifacePlaceholder is substituted with the interface name in client args.
const ifacePlaceholder = "{iface}"

// Runner is the subset of process.Manager the client drives.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}

// Logger defines the logging interface for the DHCP client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Service.
type Options struct {
	Binary string
	Args   []string
	Logger Logger

	// NewRunner builds the process runner. Defaults to process.NewManager.
	NewRunner func(cfg process.Config) Runner
}

// Service starts one DHCP client process per interface.
type Service struct {
	opts Options

	// ctx outlives any single Start call; processes are bound to it.
	ctx context.Context

	mu      sync.Mutex
	runners map[string]Runner
}

// NewService creates a client. Processes started later are stopped
// when ctx ends.
func NewService(ctx context.Context, opts Options) (*Service, error) {
	if opts.Binary == "" {
		return nil, fmt.Errorf("addressing: dhcp binary is required")
	}
	if opts.NewRunner == nil {
		logger := opts.Logger
		opts.NewRunner = func(cfg process.Config) Runner {
			m := process.NewManager(cfg)
			if logger != nil {
				m.SetLogger(logger)
			}
			return m
		}
	}
	return &Service{
		opts:    opts,
		ctx:     ctx,
		runners: make(map[string]Runner),
	}, nil
}

// Start begins address acquisition on iface.
func (c *Service) Start(iface string) error {
	if iface == "" {
		return fmt.Errorf("addressing: interface is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.runners[iface]
	if ok && r.IsRunning() {
		return nil
	}
	if !ok {
		r = c.opts.NewRunner(process.Config{
			Name:               "dhcp-" + iface,
			Binary:             c.opts.Binary,
			Args:               ExpandArgs(c.opts.Args, iface),
			RestartOnFailure:   true,
			RestartDelay:       time.Second,
			MaxRestartDelay:    30 * time.Second,
			MaxRestartAttempts: 0,
		})
		c.runners[iface] = r
	}

	if err := r.Start(c.ctx); err != nil {
		return fmt.Errorf("starting dhcp client on %s: %w", iface, err)
	}
	if c.opts.Logger != nil {
		c.opts.Logger.Info("dhcp client started", "iface", iface)
	}
	return nil
}

// Stop stops every client started by Start.
func (c *Service) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for iface, r := range c.runners {
		if err := r.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stopping dhcp client on %s: %w", iface, err)
		}
	}
	return firstErr
}

// ExpandArgs substitutes the interface placeholder in args.
func ExpandArgs(args []string, iface string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, ifacePlaceholder, iface)
	}
	return out
}
