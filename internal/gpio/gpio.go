package gpio

import (
	"fmt"
	"sync"

	gpiod "github.com/warthog618/go-gpiocdev"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

const consumer = "graylogic-node"

// Chip is an open GPIO chip.
type Chip struct {
	chip *gpiod.Chip

	mu    sync.Mutex
	lines []*gpiod.Line
}

// Open opens the named chip, e.g. "gpiochip0".
func Open(name string) (*Chip, error) {
	c, err := gpiod.NewChip(name, gpiod.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return &Chip{chip: c}, nil
}

// LED requests cfg.Line as an output, initially off.
func (c *Chip) LED(name string, cfg config.LineConfig) (*LED, error) {
	opts := []gpiod.LineReqOption{gpiod.AsOutput(0)}
	if cfg.ActiveLow {
		opts = append(opts, gpiod.AsActiveLow)
	}
	line, err := c.chip.RequestLine(cfg.Line, opts...)
	if err != nil {
		return nil, fmt.Errorf("requesting %s led on line %d: %w", name, cfg.Line, err)
	}
	c.track(line)
	return &LED{name: name, line: line}, nil
}

// Button requests cfg.Line as an input and calls onPress from the edge
// handler goroutine for every press. onPress must not block.
func (c *Chip) Button(name string, cfg config.LineConfig, onPress func()) (*Button, error) {
	b := &Button{name: name, onPress: onPress}
	opts := []gpiod.LineReqOption{
		gpiod.AsInput,
		gpiod.WithRisingEdge,
		gpiod.WithEventHandler(b.handle),
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiod.AsActiveLow)
	}
	if cfg.PullUp {
		opts = append(opts, gpiod.WithPullUp)
	}
	line, err := c.chip.RequestLine(cfg.Line, opts...)
	if err != nil {
		return nil, fmt.Errorf("requesting %s button on line %d: %w", name, cfg.Line, err)
	}
	c.track(line)
	b.line = line
	return b, nil
}

func (c *Chip) track(line *gpiod.Line) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

// Close releases every requested line and the chip.
func (c *Chip) Close() error {
	c.mu.Lock()
	lines := c.lines
	c.lines = nil
	c.mu.Unlock()

	for _, l := range lines {
		l.Close() //nolint:errcheck // best effort on shutdown
	}
	if err := c.chip.Close(); err != nil {
		return fmt.Errorf("closing chip: %w", err)
	}
	return nil
}

// LED is one status LED.
type LED struct {
	name string
	line *gpiod.Line
}

// Name returns the LED name.
func (l *LED) Name() string { return l.name }

// Set lights or clears the LED.
func (l *LED) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("setting %s led: %w", l.name, err)
	}
	return nil
}

// Button is one push button.
type Button struct {
	name    string
	line    *gpiod.Line
	onPress func()
}

// Name returns the button name.
func (b *Button) Name() string { return b.name }

func (b *Button) handle(evt gpiod.LineEvent) {
	if !isPress(evt.Type) {
		return
	}
	if b.onPress != nil {
		b.onPress()
	}
}

// isPress reports whether an edge is a logical press.
func isPress(t gpiod.LineEventType) bool {
	return t == gpiod.LineEventRisingEdge
}
