package softap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-node/internal/credentials"
	"github.com/nerrad567/gray-logic-node/internal/process"
	"github.com/nerrad567/gray-logic-node/internal/provisioning"
)

type fakeRunner struct {
	mu     sync.Mutex
	cfg    process.Config
	starts int
	stops  int
}

func (r *fakeRunner) Start(context.Context) error {
	r.mu.Lock()
	r.starts++
	r.mu.Unlock()
	return nil
}

func (r *fakeRunner) Stop() error {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
	return nil
}

// line simulates one line of helper stdout.
func (r *fakeRunner) line(s string) { r.cfg.OnOutput("stdout", s) }

// exit simulates the helper exiting for good.
func (r *fakeRunner) exit(err error) { r.cfg.OnGiveUp(err) }

type fakeStore struct {
	mu      sync.Mutex
	saved   []credentials.Credential
	empty   bool
	saveErr error
}

func (s *fakeStore) Save(_ context.Context, c credentials.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, c)
	return nil
}

func (s *fakeStore) IsEmpty(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.empty, nil
}

type events struct {
	mu   sync.Mutex
	list []provisioning.Event
}

func (e *events) handle(ev provisioning.Event) {
	e.mu.Lock()
	e.list = append(e.list, ev)
	e.mu.Unlock()
}

func (e *events) get() []provisioning.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]provisioning.Event(nil), e.list...)
}

func setup(t *testing.T, store *fakeStore) (*Service, *fakeRunner, *events) {
	t.Helper()
	runner := &fakeRunner{}
	svc, err := New(Options{
		Binary:   "softap-helper",
		Store:    store,
		LookPath: func(file string) (string, error) { return "/usr/libexec/" + file, nil },
		NewRunner: func(cfg process.Config) Runner {
			runner.cfg = cfg
			return runner
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ev := &events{}
	if err := svc.Init(context.Background(), ev.handle); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return svc, runner, ev
}

func TestInit_HelperMissing(t *testing.T) {
	svc, err := New(Options{
		Binary:   "missing-helper",
		LookPath: func(string) (string, error) { return "", errors.New("not found") },
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Init(context.Background(), func(provisioning.Event) {}); !errors.Is(err, ErrHelperMissing) {
		t.Errorf("Init() error = %v, want ErrHelperMissing", err)
	}
}

func TestStart_BeforeInit(t *testing.T) {
	svc, err := New(Options{Binary: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Start(context.Background()); !errors.Is(err, ErrNotInitialised) {
		t.Errorf("Start() error = %v, want ErrNotInitialised", err)
	}
}

func TestStart(t *testing.T) {
	tests := []struct {
		name       string
		empty      bool
		want       provisioning.StartResult
		wantStarts int
	}{
		{"empty store launches helper", true, provisioning.StartStarted, 1},
		{"stored credentials skip helper", false, provisioning.StartAlreadyProvisioned, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, runner, _ := setup(t, &fakeStore{empty: tt.empty})

			got, err := svc.Start(context.Background())
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Start() = %v, want %v", got, tt.want)
			}
			if runner.starts != tt.wantStarts {
				t.Errorf("runner starts = %d, want %d", runner.starts, tt.wantStarts)
			}
			if runner.cfg.Binary != "/usr/libexec/softap-helper" {
				t.Errorf("runner binary = %q", runner.cfg.Binary)
			}
		})
	}
}

func TestHelperEvents(t *testing.T) {
	store := &fakeStore{empty: true}
	_, runner, ev := setup(t, store)

	runner.line(`{"event":"started"}`)
	runner.line(`hostapd: wlan0: AP-ENABLED`)
	runner.line(`{"event":"client_connected"}`)
	runner.line(`{"event":"credentials_received","ssid":"home","passphrase":"hunter22"}`)
	runner.line(`{"event":"client_disconnected"}`)
	runner.line(`{"event":"completed"}`)
	runner.exit(errors.New("process softap-helper exited"))

	want := []provisioning.Event{
		provisioning.EventStarted,
		provisioning.EventClientConnected,
		provisioning.EventCredentialsReceived,
		provisioning.EventClientDisconnected,
		provisioning.EventCompleted,
	}
	got := ev.get()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}

	if len(store.saved) != 1 || store.saved[0].SSID != "home" || store.saved[0].Passphrase != "hunter22" {
		t.Errorf("saved = %+v", store.saved)
	}
}

func TestHelperExitBeforeCompletionIsFatal(t *testing.T) {
	_, runner, ev := setup(t, &fakeStore{empty: true})

	runner.line(`{"event":"started"}`)
	runner.exit(errors.New("signal: segmentation fault"))

	got := ev.get()
	if len(got) != 2 || got[1] != provisioning.EventFatalError {
		t.Errorf("events = %v, want started then fatal_error", got)
	}
}

func TestStopIsNotFatal(t *testing.T) {
	svc, runner, ev := setup(t, &fakeStore{empty: true})

	if err := svc.Stop(); err != nil {
		t.Fatal(err)
	}
	runner.exit(errors.New("signal: terminated"))

	if got := ev.get(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
	if runner.stops != 1 {
		t.Errorf("runner stops = %d, want 1", runner.stops)
	}
}

func TestSaveFailureIsFatal(t *testing.T) {
	_, runner, ev := setup(t, &fakeStore{empty: true, saveErr: errors.New("disk full")})

	runner.line(`{"event":"credentials_received","ssid":"home"}`)
	runner.line(`{"event":"completed"}`)

	got := ev.get()
	if len(got) != 1 || got[0] != provisioning.EventFatalError {
		t.Errorf("events = %v, want only fatal_error", got)
	}
}

func TestTerminalEventsDeliveredOnce(t *testing.T) {
	_, runner, ev := setup(t, &fakeStore{empty: true})

	runner.line(`{"event":"reboot_needed"}`)
	runner.line(`{"event":"fatal_error","detail":"late"}`)
	runner.exit(nil)

	got := ev.get()
	if len(got) != 1 || got[0] != provisioning.EventRebootNeeded {
		t.Errorf("events = %v, want only reboot_needed", got)
	}
}

func TestUnknownAndStderrLinesIgnored(t *testing.T) {
	_, runner, ev := setup(t, &fakeStore{empty: true})

	runner.line(`{"event":"firmware_update"}`)
	runner.line(`   `)
	runner.cfg.OnOutput("stderr", `{"event":"completed"}`)

	if got := ev.get(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}
