package feedback

import (
	"sync"
	"time"
)

// Output is one LED. gpio.LED implements it.
type Output interface {
	Set(on bool) error
}

// Timer is a scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules blink toggles.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type blinkMode int

const (
	modeUnset blinkMode = iota
	modeSolid
	modeBlink
)

// Blinker owns one LED and at most one scheduled toggle for it.
//
// Every new pattern stops the outstanding timer and bumps the generation
// before anything is scheduled. A toggle that fires for an older
// generation does nothing, which covers a timer that had already fired
// when Stop was called.
type Blinker struct {
	name   string
	out    Output
	clock  Clock
	logger Logger

	mu     sync.Mutex
	mode   blinkMode
	solid  bool
	period time.Duration
	lit    bool
	gen    uint64
	timer  Timer
}

// NewBlinker creates a Blinker for out. A nil clock uses real timers.
func NewBlinker(name string, out Output, clock Clock, logger Logger) *Blinker {
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Blinker{name: name, out: out, clock: clock, logger: logger}
}

// Apply shows p. It reports whether anything changed.
func (b *Blinker) Apply(p Pattern) bool {
	switch p.Kind {
	case PatternBlink:
		return b.Blink(p.Period)
	case PatternOn:
		return b.Solid(true)
	default:
		return b.Solid(false)
	}
}

// Blink toggles the LED every period, starting lit. Blinking again with
// the same period is a no-op.
func (b *Blinker) Blink(period time.Duration) bool {
	if period <= 0 {
		return b.Solid(true)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode == modeBlink && b.period == period {
		return false
	}
	gen := b.cancelLocked()
	b.mode = modeBlink
	b.period = period
	b.writeLocked(true)
	b.timer = b.clock.AfterFunc(period, func() { b.tick(gen) })
	return true
}

// Solid holds the LED on or off. Repeating the current state is a no-op.
func (b *Blinker) Solid(on bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode == modeSolid && b.solid == on {
		return false
	}
	b.cancelLocked()
	b.mode = modeSolid
	b.solid = on
	b.period = 0
	b.writeLocked(on)
	return true
}

// Stop cancels blinking and turns the LED off.
func (b *Blinker) Stop() {
	b.Solid(false)
}

// cancelLocked stops the outstanding timer and returns the new generation.
func (b *Blinker) cancelLocked() uint64 {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	return b.gen
}

func (b *Blinker) tick(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen || b.mode != modeBlink {
		return
	}
	b.writeLocked(!b.lit)
	b.timer = b.clock.AfterFunc(b.period, func() { b.tick(gen) })
}

func (b *Blinker) writeLocked(on bool) {
	b.lit = on
	if b.out == nil {
		return
	}
	if err := b.out.Set(on); err != nil {
		b.logger.Warn("led write failed", "led", b.name, "error", err)
	}
}
