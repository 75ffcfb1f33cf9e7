package node

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-node/internal/fatal"
	"github.com/nerrad567/gray-logic-node/internal/statusbus"
)

// Runner is a long-lived component.
type Runner interface {
	Run(ctx context.Context) error
}

// Component is a named Runner.
type Component struct {
	Name   string
	Runner Runner
}

// Logger defines the logging interface used by the node.
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

// Options configures a Node.
type Options struct {
	Bus    *statusbus.Bus
	Logger Logger

	// Components are started in order.
	Components []Component

	// Closers release resources after Run, in reverse order.
	Closers []func() error
}

// Node runs the coordinators and their collaborators.
type Node struct {
	bus        *statusbus.Bus
	log        Logger
	components []Component
	closers    []func() error
}

// New validates opts.
func New(opts Options) (*Node, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("node: bus is required")
	}
	if len(opts.Components) == 0 {
		return nil, fmt.Errorf("node: no components")
	}
	for _, c := range opts.Components {
		if c.Runner == nil {
			return nil, fmt.Errorf("node: component %q has no runner", c.Name)
		}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Node{
		bus:        opts.Bus,
		log:        opts.Logger,
		components: opts.Components,
		closers:    opts.Closers,
	}, nil
}

// Bus returns the node's status bus.
func (n *Node) Bus() *statusbus.Bus {
	return n.bus
}

// Run starts every component and waits for all of them.
//
// A component that finishes its work (provisioning once resolved) simply
// returns nil and the rest keep running. The first component error stops
// the others.
//
// Returns:
//   - error: nil on shutdown, the first component error otherwise
func (n *Node) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range n.components {
		g.Go(func() error {
			n.log.Debug("component starting", "component", c.Name)
			err := c.Runner.Run(gctx)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
				n.log.Debug("component stopped", "component", c.Name)
				return nil
			case errors.Is(err, fatal.ErrEscalated):
				n.log.Warn("component escalated", "component", c.Name)
			default:
				n.log.Error("component failed", "component", c.Name, "error", err)
			}
			return fmt.Errorf("%s: %w", c.Name, err)
		})
	}
	return g.Wait()
}

// Close releases the resources Build acquired.
func (n *Node) Close() error {
	var errs []error
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
