package softap

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/credentials"
	"github.com/nerrad567/gray-logic-node/internal/process"
	"github.com/nerrad567/gray-logic-node/internal/provisioning"
)

// saveTimeout bounds persisting one received credential.
const saveTimeout = 5 * time.Second

// CredentialStore is the subset of credentials.Store the service needs.
type CredentialStore interface {
	Save(ctx context.Context, c credentials.Credential) error
	IsEmpty(ctx context.Context) (bool, error)
}

// Runner is the subset of process.Manager the service drives.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error
}

// Logger defines the logging interface for the service.
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

// Options configures a Service.
type Options struct {
	Binary string
	Args   []string
	Store  CredentialStore
	Logger Logger

	// LookPath resolves Binary. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)

	// NewRunner builds the helper runner. Defaults to process.NewManager.
	NewRunner func(cfg process.Config) Runner
}

// helperMessage is one line of helper output.
type helperMessage struct {
	Event      string `json:"event"`
	SSID       string `json:"ssid,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
	Security   string `json:"security,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

var eventNames = map[string]provisioning.Event{
	"started":              provisioning.EventStarted,
	"client_connected":     provisioning.EventClientConnected,
	"client_disconnected":  provisioning.EventClientDisconnected,
	"credentials_received": provisioning.EventCredentialsReceived,
	"completed":            provisioning.EventCompleted,
	"reboot_needed":        provisioning.EventRebootNeeded,
	"fatal_error":          provisioning.EventFatalError,
}

// Service runs the SoftAP helper. It implements provisioning.ProtocolService.
type Service struct {
	opts Options

	mu       sync.Mutex
	ctx      context.Context
	handler  func(provisioning.Event)
	runner   Runner
	finished bool // helper reported completed, reboot_needed or fatal_error
	stopping bool
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Binary == "" {
		return nil, fmt.Errorf("softap: helper binary is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.NewRunner == nil {
		logger := opts.Logger
		opts.NewRunner = func(cfg process.Config) Runner {
			m := process.NewManager(cfg)
			m.SetLogger(logger)
			return m
		}
	}
	return &Service{opts: opts}, nil
}

// Init resolves the helper binary and registers handler.
func (s *Service) Init(ctx context.Context, handler func(provisioning.Event)) error {
	path, err := s.opts.LookPath(s.opts.Binary)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHelperMissing, s.opts.Binary, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.handler = handler
	s.runner = s.opts.NewRunner(process.Config{
		Name:             "softap-helper",
		Binary:           path,
		Args:             s.opts.Args,
		RestartOnFailure: false,
		OnOutput:         s.onOutput,
		OnGiveUp:         s.onExit,
	})
	return nil
}

// Start launches the helper unless credentials are already stored.
func (s *Service) Start(ctx context.Context) (provisioning.StartResult, error) {
	s.mu.Lock()
	runner := s.runner
	s.mu.Unlock()
	if runner == nil {
		return 0, ErrNotInitialised
	}

	if s.opts.Store != nil {
		empty, err := s.opts.Store.IsEmpty(ctx)
		if err == nil && !empty {
			return provisioning.StartAlreadyProvisioned, nil
		}
	}

	if err := runner.Start(ctx); err != nil {
		return 0, fmt.Errorf("starting softap helper: %w", err)
	}
	return provisioning.StartStarted, nil
}

// Stop terminates the helper.
func (s *Service) Stop() error {
	s.mu.Lock()
	s.stopping = true
	runner := s.runner
	s.mu.Unlock()
	if runner == nil {
		return nil
	}
	return runner.Stop()
}

func (s *Service) onOutput(stream, line string) {
	if stream != "stdout" {
		s.opts.Logger.Debug("softap helper", "output", line)
		return
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var msg helperMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		s.opts.Logger.Debug("softap helper", "output", line)
		return
	}

	ev, ok := eventNames[msg.Event]
	if !ok {
		s.opts.Logger.Warn("unknown softap helper event", "event", msg.Event)
		return
	}

	if ev == provisioning.EventCredentialsReceived {
		if err := s.save(msg); err != nil {
			s.opts.Logger.Error("saving received credentials failed", "ssid", msg.SSID, "error", err)
			ev = provisioning.EventFatalError
		}
	}
	if ev == provisioning.EventFatalError && msg.Detail != "" {
		s.opts.Logger.Error("softap helper fatal error", "detail", msg.Detail)
	}

	s.emit(ev)
}

func (s *Service) save(msg helperMessage) error {
	if s.opts.Store == nil {
		return nil
	}
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), saveTimeout)
	defer cancel()
	return s.opts.Store.Save(ctx, credentials.Credential{
		SSID:       msg.SSID,
		Passphrase: msg.Passphrase,
		Security:   msg.Security,
	})
}

// onExit runs when the helper has exited for good.
func (s *Service) onExit(err error) {
	s.mu.Lock()
	expected := s.finished || s.stopping
	s.mu.Unlock()
	if expected {
		s.opts.Logger.Debug("softap helper exited", "error", err)
		return
	}
	s.opts.Logger.Error("softap helper exited before provisioning finished", "error", err)
	s.emit(provisioning.EventFatalError)
}

func (s *Service) emit(ev provisioning.Event) {
	s.mu.Lock()
	switch ev {
	case provisioning.EventCompleted, provisioning.EventRebootNeeded, provisioning.EventFatalError:
		if s.finished {
			s.mu.Unlock()
			return
		}
		s.finished = true
	}
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(ev)
	}
}
