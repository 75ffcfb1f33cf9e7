package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Status is the supervisor's view of the child.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// maxLineLength bounds a single captured output line. The SoftAP helper
// reports one JSON object per line.
const maxLineLength = 64 * 1024

// Config describes one helper binary.
type Config struct {
	// Name identifies the child in logs ("softap-helper", "dhcp-wlan0").
	Name   string
	Binary string
	Args   []string

	// RestartOnFailure restarts the child after an unexpected exit, waiting
	// RestartDelay and doubling up to MaxRestartDelay.
	RestartOnFailure bool
	RestartDelay     time.Duration
	MaxRestartDelay  time.Duration

	// MaxRestartAttempts limits restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is the SIGTERM to SIGKILL grace period.
	GracefulTimeout time.Duration

	// OnOutput receives every line the child writes; stream is "stdout" or
	// "stderr". It runs on the reader goroutine.
	OnOutput func(stream, line string)

	// OnStop runs after each exit: err is nil for a requested stop.
	OnStop func(err error)

	// OnGiveUp runs once when an unexpected exit will not be followed by a
	// restart.
	OnGiveUp func(err error)
}

// Logger defines the logging interface for the process manager.
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

// Manager supervises one child process.
type Manager struct {
	cfg    Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	output        *sync.WaitGroup
	status        Status
	restarts      int
	stopRequested bool
	delays        *backoff.ExponentialBackOff
	done          chan struct{}
}

// NewManager fills in defaults. The child is not started.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = cfg.RestartDelay
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 5 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		logger: noopLogger{},
		status: StatusStopped,
		delays: newRestartBackoff(cfg),
	}
}

// newRestartBackoff is deterministic: restarts of a local helper do not
// need jitter.
func newRestartBackoff(cfg Config) *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(cfg.RestartDelay),
		backoff.WithMaxInterval(cfg.MaxRestartDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the child and supervises it until ctx ends or Stop.
//
// Returns:
//   - error: If the child is already running or cannot be executed
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("process %s is already running", m.cfg.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.restarts = 0
	m.delays.Reset()
	m.done = make(chan struct{})
	m.mu.Unlock()

	if err := m.spawn(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		close(m.done)
		m.mu.Unlock()
		return err
	}
	go m.supervise(ctx)
	return nil
}

func (m *Manager) spawn(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, m.cfg.Binary, m.cfg.Args...) //nolint:gosec // binary comes from node config
	// Own process group so Stop reaches anything the helper forks (hostapd, dnsmasq).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.cfg.Name, err)
	}

	var output sync.WaitGroup
	output.Add(2)
	go m.readLines("stdout", stdout, &output)
	go m.readLines("stderr", stderr, &output)

	m.mu.Lock()
	m.cmd = cmd
	m.output = &output
	m.status = StatusRunning
	m.mu.Unlock()

	m.logger.Info("process started", "name", m.cfg.Name, "binary", m.cfg.Binary, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) readLines(stream string, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineLength)
	for sc.Scan() {
		line := sc.Text()
		m.logger.Debug("process output", "name", m.cfg.Name, "stream", stream, "line", line)
		if m.cfg.OnOutput != nil {
			m.cfg.OnOutput(stream, line)
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		m.logger.Debug("output stream closed", "name", m.cfg.Name, "stream", stream, "error", err)
	}
}

// supervise waits for each exit and decides whether to restart.
func (m *Manager) supervise(ctx context.Context) {
	defer close(m.done)

	for {
		err := m.waitExit()
		if m.stopping(ctx) {
			m.setStatus(StatusStopped)
			m.logger.Info("process stopped", "name", m.cfg.Name)
			m.notifyStop(nil)
			return
		}

		if err == nil {
			err = fmt.Errorf("process %s exited", m.cfg.Name)
		}
		m.setStatus(StatusFailed)
		m.logger.Warn("process exited unexpectedly", "name", m.cfg.Name, "error", err)
		m.notifyStop(err)

		delay, ok := m.nextRestart()
		if !ok {
			if m.cfg.OnGiveUp != nil {
				m.cfg.OnGiveUp(err)
			}
			return
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if m.stopping(ctx) {
			return
		}
		if err := m.spawn(ctx); err != nil {
			m.logger.Error("restarting process failed", "name", m.cfg.Name, "error", err)
			if m.cfg.OnGiveUp != nil {
				m.cfg.OnGiveUp(err)
			}
			return
		}
	}
}

// waitExit blocks until the current child exits. Output readers finish
// first since Wait closes the pipes.
func (m *Manager) waitExit() error {
	m.mu.RLock()
	cmd, output := m.cmd, m.output
	m.mu.RUnlock()
	output.Wait()
	return cmd.Wait()
}

func (m *Manager) stopping(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopRequested || ctx.Err() != nil
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) notifyStop(err error) {
	if m.cfg.OnStop != nil {
		m.cfg.OnStop(err)
	}
}

// nextRestart counts a restart and returns its delay, or false when
// restarts are disabled or exhausted.
func (m *Manager) nextRestart() (time.Duration, bool) {
	if !m.cfg.RestartOnFailure {
		return 0, false
	}
	m.mu.Lock()
	m.restarts++
	attempt := m.restarts
	delay := m.delays.NextBackOff()
	m.mu.Unlock()

	if m.cfg.MaxRestartAttempts > 0 && attempt > m.cfg.MaxRestartAttempts {
		m.logger.Error("giving up on process", "name", m.cfg.Name, "restarts", attempt-1)
		return 0, false
	}
	m.logger.Info("restarting process", "name", m.cfg.Name, "attempt", attempt, "delay", delay)
	return delay, true
}

// Stop sends SIGTERM to the child's process group, then SIGKILL after
// GracefulTimeout. Stopping a stopped manager is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	m.stopRequested = true
	running := m.status == StatusRunning || m.status == StatusStarting
	cmd, done := m.cmd, m.done
	m.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.cfg.Name, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("signalling process group failed", "name", m.cfg.Name, "error", err)
	}

	t := time.NewTimer(m.cfg.GracefulTimeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		m.logger.Warn("process ignored SIGTERM, killing", "name", m.cfg.Name, "timeout", m.cfg.GracefulTimeout)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.cfg.Name, err)
	}
	<-done
	return nil
}

// Wait blocks until supervision ends or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the supervisor's view of the child.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning reports whether the child is up.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// Restarts returns the number of restarts since Start.
func (m *Manager) Restarts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restarts
}
