package feedback

import (
	"sync"
	"testing"
	"time"
)

// fakeLED records every write.
type fakeLED struct {
	mu     sync.Mutex
	writes []bool
}

func (l *fakeLED) Set(on bool) error {
	l.mu.Lock()
	l.writes = append(l.writes, on)
	l.mu.Unlock()
	return nil
}

func (l *fakeLED) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.writes)
}

func (l *fakeLED) last() (bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.writes) == 0 {
		return false, false
	}
	return l.writes[len(l.writes)-1], true
}

// fakeClock fires timers only when told to.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// active returns timers that are neither stopped nor fired.
func (c *fakeClock) active() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
		t.mu.Unlock()
	}
	return out
}

// fire runs t's callback as if its deadline passed, even if it was stopped.
func (t *fakeTimer) fire() {
	t.mu.Lock()
	t.fired = true
	f := t.f
	t.mu.Unlock()
	f()
}

func TestBlinker_BlinkToggles(t *testing.T) {
	led := &fakeLED{}
	clock := &fakeClock{}
	b := NewBlinker("prov", led, clock, nil)

	if !b.Blink(200 * time.Millisecond) {
		t.Fatal("Blink() = false on first call")
	}
	if on, _ := led.last(); !on {
		t.Error("blink should start lit")
	}

	for i := 0; i < 4; i++ {
		active := clock.active()
		if len(active) != 1 {
			t.Fatalf("active timers = %d, want 1", len(active))
		}
		if active[0].d != 200*time.Millisecond {
			t.Errorf("period = %v, want 200ms", active[0].d)
		}
		active[0].fire()
	}

	want := []bool{true, false, true, false, true}
	if len(led.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", led.writes, want)
	}
	for i := range want {
		if led.writes[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, led.writes[i], want[i])
		}
	}
}

func TestBlinker_SamePeriodIsNoOp(t *testing.T) {
	led := &fakeLED{}
	clock := &fakeClock{}
	b := NewBlinker("prov", led, clock, nil)

	b.Blink(time.Second)
	writes := led.count()
	for i := 0; i < 3; i++ {
		if b.Blink(time.Second) {
			t.Error("Blink() with same period reported a change")
		}
	}
	if led.count() != writes {
		t.Errorf("writes = %d, want %d", led.count(), writes)
	}
	if n := clock.count(); n != 1 {
		t.Errorf("timers scheduled = %d, want 1", n)
	}
}

func TestBlinker_RescheduleCancelsPrevious(t *testing.T) {
	led := &fakeLED{}
	clock := &fakeClock{}
	b := NewBlinker("prov", led, clock, nil)

	b.Blink(200 * time.Millisecond)
	old := clock.active()[0]

	b.Blink(time.Second)

	active := clock.active()
	if len(active) != 1 || active[0].d != time.Second {
		t.Fatalf("active timers = %d, want exactly the new one", len(active))
	}
	if !old.stopped {
		t.Error("previous timer was not stopped")
	}

	// A stale toggle that raced the cancel must not write or reschedule.
	writes := led.count()
	old.fire()
	if led.count() != writes {
		t.Error("stale toggle wrote to the LED")
	}
	if len(clock.active()) != 1 {
		t.Error("stale toggle scheduled another timer")
	}
}

func TestBlinker_SolidCancelsBlink(t *testing.T) {
	led := &fakeLED{}
	clock := &fakeClock{}
	b := NewBlinker("prov", led, clock, nil)

	b.Blink(200 * time.Millisecond)
	blinkTimer := clock.active()[0]

	if !b.Solid(true) {
		t.Fatal("Solid(true) = false after blinking")
	}
	if len(clock.active()) != 0 {
		t.Error("blink timer still active after Solid")
	}
	blinkTimer.fire()
	if on, _ := led.last(); !on {
		t.Error("stale toggle changed a solid LED")
	}

	writes := led.count()
	if b.Solid(true) {
		t.Error("repeated Solid(true) reported a change")
	}
	if led.count() != writes {
		t.Error("repeated Solid(true) wrote to the LED")
	}
}

func TestBlinker_ApplyPatterns(t *testing.T) {
	led := &fakeLED{}
	b := NewBlinker("conn", led, &fakeClock{}, nil)

	if !b.Apply(Pattern{Kind: PatternOff}) {
		t.Error("first Apply(off) = false, want the initial write")
	}
	if b.Apply(Pattern{Kind: PatternOff}) {
		t.Error("second Apply(off) = true")
	}
	if !b.Apply(Pattern{Kind: PatternOn}) {
		t.Error("Apply(on) = false")
	}
	if on, _ := led.last(); !on {
		t.Error("LED not lit after Apply(on)")
	}
}

func TestBlinker_NilOutput(t *testing.T) {
	b := NewBlinker("missing", nil, &fakeClock{}, nil)
	b.Blink(time.Second)
	b.Solid(true)
	b.Stop()
}
