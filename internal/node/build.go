package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/addressing"
	"github.com/nerrad567/gray-logic-node/internal/connmgr"
	"github.com/nerrad567/gray-logic-node/internal/credentials"
	"github.com/nerrad567/gray-logic-node/internal/fatal"
	"github.com/nerrad567/gray-logic-node/internal/feedback"
	"github.com/nerrad567/gray-logic-node/internal/gpio"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/network"
	"github.com/nerrad567/gray-logic-node/internal/provisioning"
	"github.com/nerrad567/gray-logic-node/internal/softap"
	"github.com/nerrad567/gray-logic-node/internal/statusbus"
	"github.com/nerrad567/gray-logic-node/internal/telemetry"
	"github.com/nerrad567/gray-logic-node/internal/transport"
	"github.com/nerrad567/gray-logic-node/migrations"
)

// builder accumulates closers so a failed Build releases what it opened.
type builder struct {
	cfg     *config.Config
	log     *logging.Logger
	closers []func() error
}

func (b *builder) onClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

func (b *builder) abort(err error) error {
	n := &Node{closers: b.closers}
	if cerr := n.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// Build wires a Node from cfg.
//
// Optional peripherals (GPIO lines, InfluxDB) that fail to initialise are
// logged and left out. Mandatory ones (database, interface name, helper
// binary) fail the build.
//
// Parameters:
//   - ctx: Lifetime of processes the node supervises (DHCP client)
//   - cfg: Validated configuration
//   - log: Root logger; components log through With("component", ...)
//
// Returns:
//   - *Node: Ready to Run; call Close afterwards
//   - error: If a mandatory collaborator cannot be created
func Build(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Node, error) {
	b := &builder{cfg: cfg, log: log}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	b.onClose(db.Close)

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return nil, b.abort(fmt.Errorf("running migrations: %w", err))
	}
	log.Info("database ready", "path", cfg.Database.Path, "migrations_applied", applied)
	store := credentials.NewStore(db.DB)

	bus := statusbus.New(statusbus.Options{QueueSize: cfg.Bus.QueueSize})

	escalator := fatal.NewHandler(fatal.Options{
		Mode:     cfg.Fatal.Mode,
		ExitCode: cfg.Fatal.ExitCode,
		Logger:   log.With("component", "fatal"),
		Flush:    log.Sync,
	})
	// No status publish succeeds once escalation has begun.
	escalator.OnEscalate(func(fatal.Event) { bus.Close() })

	influx := b.connectInflux(ctx)
	if influx != nil {
		escalator.OnEscalate(telemetry.EscalationHook(influx, cfg.Node.ID))
	}

	manager, err := connmgr.New(connmgr.Options{
		Interface: cfg.Network.Interface,
		Logger:    log.With("component", "connmgr"),
	})
	if err != nil {
		return nil, b.abort(err)
	}

	helper, err := softap.New(softap.Options{
		Binary: cfg.Provisioning.Helper.Binary,
		Args:   cfg.Provisioning.Helper.Args,
		Store:  store,
		Logger: log.With("component", "softap"),
	})
	if err != nil {
		return nil, b.abort(err)
	}
	b.onClose(helper.Stop)

	d := cfg.Provisioning.Discoverability
	prov, err := provisioning.New(provisioning.Options{
		Bus:                      bus,
		Protocol:                 helper,
		Store:                    store,
		Interfaces:               manager,
		Escalator:                escalator,
		Logger:                   log.With("component", "provisioning"),
		PublishTimeout:           time.Duration(cfg.Provisioning.PublishTimeoutMS) * time.Millisecond,
		EscalateOnPublishFailure: cfg.Provisioning.EscalateOnPublishFailure,
		Discoverability: provisioning.Discoverability{
			Enabled:   d.Enabled,
			Duration:  cfg.GetDiscoverabilityWindow(),
			PowerSave: manager,
			Announcer: &provisioning.MDNSAnnouncer{
				Instance:  instanceName(cfg.Node),
				Service:   d.Service,
				Domain:    d.Domain,
				Port:      d.Port,
				Text:      []string{"id=" + cfg.Node.ID},
				Interface: cfg.Network.Interface,
			},
		},
	})
	if err != nil {
		return nil, b.abort(err)
	}

	netOpts := network.Options{
		Bus:                 bus,
		Manager:             manager,
		Escalator:           escalator,
		Logger:              log.With("component", "network"),
		Interface:           cfg.Network.Interface,
		RequireProvisioning: cfg.Network.RequireProvisioning,
		ResendOnStart:       cfg.Network.ResendOnStart,
		WaitTimeout:         cfg.GetNetworkWaitTimeout(),
		PublishTimeout:      cfg.GetPublishTimeout(),
		ReadTimeout:         cfg.GetReadTimeout(),
	}
	if cfg.Network.DHCP.Enabled {
		dhcp, err := addressing.NewService(ctx, addressing.Options{
			Binary: cfg.Network.DHCP.Binary,
			Args:   cfg.Network.DHCP.Args,
			Logger: log.With("component", "dhcp"),
		})
		if err != nil {
			return nil, b.abort(err)
		}
		b.onClose(dhcp.Stop)
		netOpts.Addressing = dhcp
	}
	netCoord, err := network.New(netOpts)
	if err != nil {
		return nil, b.abort(err)
	}

	mqttClient := mqtt.New(cfg.MQTT, mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Node.ID))
	mqttClient.SetLogger(log.With("component", "mqtt"))
	trans, err := transport.New(transport.Options{
		Bus:            bus,
		Client:         mqttClient,
		Topics:         mqttClient.Topics(),
		Logger:         log.With("component", "transport"),
		MirrorStatus:   cfg.MQTT.MirrorStatus,
		PublishTimeout: cfg.GetPublishTimeout(),
		ReadTimeout:    cfg.GetReadTimeout(),
		RetryInitial:   time.Duration(cfg.MQTT.Reconnect.InitialDelay) * time.Second,
		RetryMax:       time.Duration(cfg.MQTT.Reconnect.MaxDelay) * time.Second,
	})
	if err != nil {
		return nil, b.abort(err)
	}

	hw := b.openGPIO()
	fb, err := feedback.New(feedback.Options{
		Bus:             bus,
		Escalator:       escalator,
		Transport:       trans,
		Credentials:     store,
		Logger:          log.With("component", "feedback"),
		ConnectivityLED: hw.led("connectivity", cfg.Feedback.GPIO.LEDs.Connectivity),
		ProvisioningLED: hw.led("provisioning", cfg.Feedback.GPIO.LEDs.Provisioning),
		FastBlink:       time.Duration(cfg.Feedback.FastBlinkMS) * time.Millisecond,
		SlowBlink:       time.Duration(cfg.Feedback.SlowBlinkMS) * time.Millisecond,
		WaitTimeout:     cfg.GetFeedbackWaitTimeout(),
		ReadTimeout:     cfg.GetReadTimeout(),
		PayloadTimeout:  time.Duration(cfg.Feedback.PayloadTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, b.abort(err)
	}
	hw.button("publish", cfg.Feedback.GPIO.Buttons.Publish, func() { fb.PressPublish() })
	hw.button("reset", cfg.Feedback.GPIO.Buttons.Reset, func() { fb.PressReset() })

	components := []Component{
		{Name: "provisioning", Runner: prov},
		{Name: "network", Runner: netCoord},
		{Name: "feedback", Runner: fb},
		{Name: "transport", Runner: trans},
	}
	if influx != nil {
		rec, err := telemetry.New(telemetry.Options{
			Bus:         bus,
			Writer:      influx,
			NodeID:      cfg.Node.ID,
			Logger:      log.With("component", "telemetry"),
			WaitTimeout: cfg.GetFeedbackWaitTimeout(),
			ReadTimeout: cfg.GetReadTimeout(),
		})
		if err != nil {
			return nil, b.abort(err)
		}
		components = append(components, Component{Name: "telemetry", Runner: rec})
	}

	return New(Options{
		Bus:        bus,
		Logger:     log.With("component", "node"),
		Components: components,
		Closers:    b.closers,
	})
}

// connectInflux returns nil when InfluxDB is disabled or unreachable.
func (b *builder) connectInflux(ctx context.Context) *influxdb.Client {
	client, err := influxdb.Connect(ctx, b.cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		b.log.Info("status history disabled")
		return nil
	case err != nil:
		b.log.Warn("InfluxDB unavailable, running without status history", "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		b.log.Warn("InfluxDB write error", "error", err)
	})
	b.onClose(client.Close)
	b.log.Info("InfluxDB connected", "url", b.cfg.InfluxDB.URL, "bucket", b.cfg.InfluxDB.Bucket)
	return client
}

// hardware hands out optional GPIO lines. A nil chip yields no lines.
type hardware struct {
	chip *gpio.Chip
	log  *logging.Logger
}

func (b *builder) openGPIO() *hardware {
	hw := &hardware{log: b.log.With("component", "gpio")}
	g := b.cfg.Feedback.GPIO
	if !g.Enabled {
		b.log.Info("GPIO disabled, running without LEDs and buttons")
		return hw
	}
	chip, err := gpio.Open(g.Chip)
	if err != nil {
		hw.log.Warn("opening GPIO chip failed, running without LEDs and buttons", "chip", g.Chip, "error", err)
		return hw
	}
	hw.chip = chip
	b.onClose(chip.Close)
	return hw
}

// led returns nil (not a typed nil) when the line is absent or fails.
func (h *hardware) led(name string, cfg config.LineConfig) feedback.Output {
	if h.chip == nil || cfg.Line < 0 {
		return nil
	}
	led, err := h.chip.LED(name, cfg)
	if err != nil {
		h.log.Warn("LED unavailable", "led", name, "error", err)
		return nil
	}
	return led
}

func (h *hardware) button(name string, cfg config.LineConfig, onPress func()) {
	if h.chip == nil || cfg.Line < 0 {
		return
	}
	if _, err := h.chip.Button(name, cfg, onPress); err != nil {
		h.log.Warn("button unavailable", "button", name, "error", err)
	}
}

func instanceName(n config.NodeConfig) string {
	if n.Name != "" {
		return n.Name
	}
	return "graylogic-" + n.ID
}
