package addressing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-node/internal/process"
)

type fakeRunner struct {
	mu      sync.Mutex
	cfg     process.Config
	running bool
	starts  int
	stops   int
	err     error
}

func (r *fakeRunner) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.err != nil {
		return r.err
	}
	r.running = true
	return nil
}

func (r *fakeRunner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.running = false
	return nil
}

func (r *fakeRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func newTestClient(t *testing.T, runners map[string]*fakeRunner, startErr error) *Service {
	t.Helper()
	c, err := NewService(context.Background(), Options{
		Binary: "/sbin/udhcpc",
		Args:   []string{"-f", "-i", "{iface}"},
		NewRunner: func(cfg process.Config) Runner {
			r := &fakeRunner{cfg: cfg, err: startErr}
			runners[cfg.Name] = r
			return r
		},
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return c
}

func TestNewService_RequiresBinary(t *testing.T) {
	if _, err := NewService(context.Background(), Options{}); err == nil {
		t.Error("NewService() error = nil, want error")
	}
}

func TestStart_SubstitutesInterface(t *testing.T) {
	runners := map[string]*fakeRunner{}
	c := newTestClient(t, runners, nil)

	if err := c.Start("wlan0"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	r := runners["dhcp-wlan0"]
	if r == nil {
		t.Fatal("no runner created for wlan0")
	}
	want := []string{"-f", "-i", "wlan0"}
	for i, a := range want {
		if r.cfg.Args[i] != a {
			t.Errorf("arg %d = %q, want %q", i, r.cfg.Args[i], a)
		}
	}
	if r.cfg.Binary != "/sbin/udhcpc" {
		t.Errorf("Binary = %q", r.cfg.Binary)
	}
}

func TestStart_NoOpWhileRunning(t *testing.T) {
	runners := map[string]*fakeRunner{}
	c := newTestClient(t, runners, nil)

	for i := 0; i < 3; i++ {
		if err := c.Start("wlan0"); err != nil {
			t.Fatalf("Start() #%d error = %v", i, err)
		}
	}
	if n := runners["dhcp-wlan0"].starts; n != 1 {
		t.Errorf("runner started %d times, want 1", n)
	}
}

func TestStart_RestartsAfterExit(t *testing.T) {
	runners := map[string]*fakeRunner{}
	c := newTestClient(t, runners, nil)

	if err := c.Start("wlan0"); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := c.Start("wlan0"); err != nil {
		t.Fatal(err)
	}
	if n := runners["dhcp-wlan0"].starts; n != 2 {
		t.Errorf("runner started %d times, want 2", n)
	}
}

func TestStart_Errors(t *testing.T) {
	runners := map[string]*fakeRunner{}
	c := newTestClient(t, runners, errors.New("exec format error"))

	if err := c.Start(""); err == nil {
		t.Error("Start(\"\") error = nil, want error")
	}
	if err := c.Start("wlan0"); err == nil {
		t.Error("Start() error = nil, want runner error")
	}
}

func TestExpandArgs(t *testing.T) {
	got := ExpandArgs([]string{"-i", "{iface}", "-p", "/run/{iface}.pid"}, "eth0")
	want := []string{"-i", "eth0", "-p", "/run/eth0.pid"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, got[i], want[i])
		}
	}
}
