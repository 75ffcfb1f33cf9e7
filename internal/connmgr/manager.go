package connmgr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/nerrad567/gray-logic-node/internal/network"
)

const updateBuffer = 32

// Logger defines the logging interface for the manager.
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

// Options configures a Manager.
type Options struct {
	Interface string
	Logger    Logger

	// IwBinary is the iw(8) executable used for power save. Defaults to "iw".
	IwBinary string

	// runCommand executes an external command. Tests replace it.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Manager implements network.ConnectivityManager over rtnetlink.
type Manager struct {
	opts Options
	nl   linkAPI

	mu         sync.Mutex
	handler    func(network.LinkEvent)
	subscribed bool
	persist    bool
	ifIndex    int
	reported   bool
	connected  bool
	fatal      bool
}

// New creates a Manager for opts.Interface.
func New(opts Options) (*Manager, error) {
	return newManager(opts, kernel{})
}

func newManager(opts Options, nl linkAPI) (*Manager, error) {
	if opts.Interface == "" {
		return nil, fmt.Errorf("connmgr: interface is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.IwBinary == "" {
		opts.IwBinary = "iw"
	}
	if opts.runCommand == nil {
		opts.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // iw path from config
		}
	}
	return &Manager{opts: opts, nl: nl}, nil
}

func (m *Manager) link() (netlink.Link, error) {
	link, err := m.nl.LinkByName(m.opts.Interface)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrInterfaceNotFound, m.opts.Interface)
		}
		return nil, fmt.Errorf("looking up %s: %w", m.opts.Interface, err)
	}
	return link, nil
}

// BringInterfacesUp sets the interface administratively up. With persist
// the manager sets it up again if something later takes it down.
func (m *Manager) BringInterfacesUp(_ context.Context, persist bool) error {
	link, err := m.link()
	if err != nil {
		return err
	}
	if err := m.nl.LinkSetUp(link); err != nil {
		return fmt.Errorf("setting %s up: %w", m.opts.Interface, err)
	}

	m.mu.Lock()
	m.ifIndex = link.Attrs().Index
	m.persist = m.persist || persist
	m.mu.Unlock()

	m.opts.Logger.Debug("interface set up", "iface", m.opts.Interface, "index", link.Attrs().Index)
	return nil
}

// RequestConnect makes sure the interface is up. The supplicant associates
// with the stored network on its own once the interface is up.
func (m *Manager) RequestConnect(ctx context.Context, persist bool) error {
	if err := m.BringInterfacesUp(ctx, persist); err != nil {
		return err
	}
	m.opts.Logger.Info("connect requested", "iface", m.opts.Interface)
	return nil
}

// Subscribe registers handler and starts watching link and address
// updates until ctx ends. Only one handler is kept.
func (m *Manager) Subscribe(ctx context.Context, handler func(network.LinkEvent)) error {
	m.mu.Lock()
	m.handler = handler
	already := m.subscribed
	m.subscribed = true
	m.mu.Unlock()
	if already {
		return nil
	}

	links := make(chan netlink.LinkUpdate, updateBuffer)
	addrs := make(chan netlink.AddrUpdate, updateBuffer)
	done := make(chan struct{})

	if err := m.nl.LinkSubscribe(links, done, m.onSocketError); err != nil {
		close(done)
		return fmt.Errorf("subscribing to link updates: %w", err)
	}
	if err := m.nl.AddrSubscribe(addrs, done, m.onAddrSocketError); err != nil {
		m.opts.Logger.Warn("address updates unavailable", "error", err)
		addrs = nil
	}

	go m.watch(ctx, done, links, addrs)
	return nil
}

// ResendStatus replays the current link state to the handler.
func (m *Manager) ResendStatus() error {
	m.mu.Lock()
	if m.handler == nil {
		m.mu.Unlock()
		return ErrNotSubscribed
	}
	m.reported = false
	m.mu.Unlock()

	link, err := m.link()
	if err != nil {
		return err
	}
	m.evaluate(link)
	return nil
}

// SetPowerSave toggles radio power save on the interface.
func (m *Manager) SetPowerSave(ctx context.Context, enabled bool) error {
	state := "off"
	if enabled {
		state = "on"
	}
	out, err := m.opts.runCommand(ctx, m.opts.IwBinary, "dev", m.opts.Interface, "set", "power_save", state)
	if err != nil {
		return fmt.Errorf("setting power save %s on %s: %w: %s", state, m.opts.Interface, err, out)
	}
	m.opts.Logger.Debug("power save", "iface", m.opts.Interface, "state", state)
	return nil
}

func (m *Manager) watch(ctx context.Context, done chan struct{}, links <-chan netlink.LinkUpdate, addrs <-chan netlink.AddrUpdate) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return

		case u, ok := <-links:
			if !ok {
				if ctx.Err() == nil {
					m.raiseFatal("link update stream closed")
				}
				return
			}
			m.handleLinkUpdate(ctx, u)

		case u, ok := <-addrs:
			if !ok {
				addrs = nil
				continue
			}
			m.handleAddrUpdate(u)
		}
	}
}

func (m *Manager) handleLinkUpdate(ctx context.Context, u netlink.LinkUpdate) {
	if u.Link == nil || u.Link.Attrs().Name != m.opts.Interface {
		return
	}
	if u.Header.Type == unix.RTM_DELLINK {
		m.raiseFatal("interface removed")
		return
	}

	attrs := u.Link.Attrs()
	m.mu.Lock()
	m.ifIndex = attrs.Index
	persist := m.persist
	m.mu.Unlock()

	if persist && attrs.Flags&net.FlagUp == 0 {
		m.opts.Logger.Warn("interface taken down, setting it up again", "iface", m.opts.Interface)
		if err := m.BringInterfacesUp(ctx, true); err != nil {
			m.opts.Logger.Error("restoring interface failed", "iface", m.opts.Interface, "error", err)
		}
	}
	m.evaluate(u.Link)
}

func (m *Manager) handleAddrUpdate(u netlink.AddrUpdate) {
	m.mu.Lock()
	ours := u.LinkIndex == m.ifIndex
	m.mu.Unlock()
	if !ours || !u.LinkAddress.IP.IsGlobalUnicast() {
		return
	}
	if u.NewAddr {
		m.opts.Logger.Info("address acquired", "iface", m.opts.Interface, "addr", u.LinkAddress.String())
	} else {
		m.opts.Logger.Info("address removed", "iface", m.opts.Interface, "addr", u.LinkAddress.String())
	}
}

// evaluate reports the link state if it changed since the last report.
func (m *Manager) evaluate(link netlink.Link) {
	connected := link.Attrs().OperState == netlink.OperUp

	m.mu.Lock()
	if m.fatal || (m.reported && m.connected == connected) {
		m.mu.Unlock()
		return
	}
	m.reported = true
	m.connected = connected
	handler := m.handler
	m.mu.Unlock()

	ev := network.LinkDisconnected
	if connected {
		ev = network.LinkConnected
	}
	m.opts.Logger.Debug("link state", "iface", m.opts.Interface, "event", ev.String(), "oper_state", link.Attrs().OperState.String())
	if handler != nil {
		handler(ev)
	}
}

func (m *Manager) onSocketError(err error) {
	m.opts.Logger.Error("link update socket error", "error", err)
	m.raiseFatal("link update socket error")
}

func (m *Manager) onAddrSocketError(err error) {
	m.opts.Logger.Warn("address update socket error", "error", err)
}

// raiseFatal reports LinkFatalError once.
func (m *Manager) raiseFatal(reason string) {
	m.mu.Lock()
	if m.fatal {
		m.mu.Unlock()
		return
	}
	m.fatal = true
	handler := m.handler
	m.mu.Unlock()

	m.opts.Logger.Error("connectivity fatal error", "iface", m.opts.Interface, "reason", reason)
	if handler != nil {
		handler(network.LinkFatalError)
	}
}

// Connected reports the last observed link state.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}
