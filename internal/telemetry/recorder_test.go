package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/fatal"
	"github.com/nerrad567/gray-logic-node/internal/statusbus"
)

type point struct {
	nodeID, channel, value string
	code                   int
}

type event struct {
	nodeID, kind, detail string
}

type mockWriter struct {
	mu      sync.Mutex
	points  []point
	events  []event
	flushes int
}

func (w *mockWriter) WriteStatus(nodeID, channel, value string, code int, _ time.Time) {
	w.mu.Lock()
	w.points = append(w.points, point{nodeID, channel, value, code})
	w.mu.Unlock()
}

func (w *mockWriter) WriteEvent(nodeID, kind, detail string, _ time.Time) {
	w.mu.Lock()
	w.events = append(w.events, event{nodeID, kind, detail})
	w.mu.Unlock()
}

func (w *mockWriter) Flush() {
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
}

func (w *mockWriter) pointsFor(channel string) []point {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []point
	for _, p := range w.points {
		if p.channel == channel {
			out = append(out, p)
		}
	}
	return out
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Options{Writer: &mockWriter{}}); err == nil {
		t.Error("New() without bus error = nil")
	}
	if _, err := New(Options{Bus: statusbus.New(statusbus.Options{})}); err == nil {
		t.Error("New() without writer error = nil")
	}
}

func TestRecorder_WritesChanges(t *testing.T) {
	bus := statusbus.New(statusbus.Options{})
	w := &mockWriter{}
	rec, err := New(Options{Bus: bus, Writer: w, NodeID: "kitchen", WaitTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	waitFor(t, func() bool { return len(w.pointsFor("transport")) == 1 })

	publish := func(v statusbus.ProvisioningStatus) {
		t.Helper()
		if err := bus.Provisioning.Publish(v, time.Second); err != nil {
			t.Fatal(err)
		}
	}
	publish(statusbus.ProvisioningInProgress)
	waitFor(t, func() bool { return len(w.pointsFor("provisioning")) == 2 })
	publish(statusbus.ProvisioningInProgress)
	publish(statusbus.ProvisioningCompleted)
	waitFor(t, func() bool { return len(w.pointsFor("provisioning")) == 3 })

	// Several wait timeouts re-read unchanged channels without writing.
	time.Sleep(80 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := w.pointsFor("provisioning")
	want := []string{"not_started", "in_progress", "completed"}
	if len(got) != len(want) {
		t.Fatalf("provisioning points = %+v, want %v", got, want)
	}
	for i := range want {
		if got[i].value != want[i] || got[i].code != i || got[i].nodeID != "kitchen" {
			t.Errorf("point %d = %+v, want %s", i, got[i], want[i])
		}
	}
	if w.flushes == 0 {
		t.Error("Run did not flush on return")
	}
}

func TestEscalationHook(t *testing.T) {
	w := &mockWriter{}
	rec := fatal.NewRecorder(EscalationHook(w, "kitchen"))

	rec.Fatal("connectivity manager reported fatal error", errors.New("link removed"))
	rec.Restart("ignored, first call wins")

	if len(w.events) != 1 {
		t.Fatalf("events = %+v, want 1", w.events)
	}
	ev := w.events[0]
	if ev.kind != "fatal" || ev.detail != "connectivity manager reported fatal error: link removed" {
		t.Errorf("event = %+v", ev)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
