package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a Gray Logic node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node         NodeConfig         `yaml:"node"`
	Bus          BusConfig          `yaml:"bus"`
	Network      NetworkConfig      `yaml:"network"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Feedback     FeedbackConfig     `yaml:"feedback"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Fatal        FatalConfig        `yaml:"fatal"`
}

// NodeConfig identifies this node on the MQTT broker and over mDNS.
type NodeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// BusConfig contains status bus settings.
type BusConfig struct {
	// QueueSize is the per-subscriber notification backlog.
	QueueSize int `yaml:"queue_size"`

	// PublishTimeoutMS bounds how long a publish waits on a slow reader.
	PublishTimeoutMS int `yaml:"publish_timeout_ms"`

	// ReadTimeoutMS bounds how long a read waits for the channel lock.
	ReadTimeoutMS int `yaml:"read_timeout_ms"`
}

// NetworkConfig contains network coordinator settings.
type NetworkConfig struct {
	// Interface is the network interface managed by the node (e.g. "wlan0").
	Interface string `yaml:"interface"`

	// RequireProvisioning gates connect requests on provisioning completion.
	RequireProvisioning bool `yaml:"require_provisioning"`

	// ResendOnStart asks the connectivity manager to replay the current
	// link status once link events are registered.
	ResendOnStart bool `yaml:"resend_on_start"`

	// WaitTimeoutSeconds bounds each blocking wait on the status bus.
	WaitTimeoutSeconds int `yaml:"wait_timeout_seconds"`

	DHCP DHCPConfig `yaml:"dhcp"`
}

// DHCPConfig configures the address acquisition client process.
type DHCPConfig struct {
	Enabled bool     `yaml:"enabled"`
	Binary  string   `yaml:"binary"`
	Args    []string `yaml:"args"`
}

// ProvisioningConfig contains provisioning coordinator settings.
type ProvisioningConfig struct {
	PublishTimeoutMS int `yaml:"publish_timeout_ms"`

	// EscalateOnPublishFailure turns a failed status publish into a fatal error.
	EscalateOnPublishFailure bool `yaml:"escalate_on_publish_failure"`

	Helper          HelperConfig          `yaml:"helper"`
	Discoverability DiscoverabilityConfig `yaml:"discoverability"`
}

// HelperConfig configures the external SoftAP provisioning helper process.
type HelperConfig struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// DiscoverabilityConfig controls the post-provisioning mDNS window.
type DiscoverabilityConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DurationSeconds int    `yaml:"duration_seconds"`
	Service         string `yaml:"service"`
	Domain          string `yaml:"domain"`
	Port            int    `yaml:"port"`
}

// FeedbackConfig contains LED and button settings.
type FeedbackConfig struct {
	WaitTimeoutSeconds int        `yaml:"wait_timeout_seconds"`
	FastBlinkMS        int        `yaml:"fast_blink_ms"`
	SlowBlinkMS        int        `yaml:"slow_blink_ms"`
	PayloadTimeoutMS   int        `yaml:"payload_timeout_ms"`
	GPIO               GPIOConfig `yaml:"gpio"`
}

// GPIOConfig maps LEDs and buttons to GPIO character device lines.
type GPIOConfig struct {
	Enabled bool        `yaml:"enabled"`
	Chip    string      `yaml:"chip"`
	LEDs    LEDLines    `yaml:"leds"`
	Buttons ButtonLines `yaml:"buttons"`
}

// LEDLines holds the connectivity (A) and provisioning (B) LED lines.
type LEDLines struct {
	Connectivity LineConfig `yaml:"connectivity"`
	Provisioning LineConfig `yaml:"provisioning"`
}

// ButtonLines holds the publish (A) and reset (B) button lines.
type ButtonLines struct {
	Publish LineConfig `yaml:"publish"`
	Reset   LineConfig `yaml:"reset"`
}

// LineConfig describes a single GPIO line. A negative Line disables it.
type LineConfig struct {
	Line      int  `yaml:"line"`
	ActiveLow bool `yaml:"active_low"`
	PullUp    bool `yaml:"pull_up"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`

	// MirrorStatus publishes each status channel to a retained topic.
	MirrorStatus bool `yaml:"mirror_status"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
// Used when Output is "file".
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// FatalConfig selects what the fatal error path does after flushing logs.
type FatalConfig struct {
	// Mode is one of "reboot", "exit" or "halt".
	Mode string `yaml:"mode"`

	// ExitCode is used when Mode is "exit".
	ExitCode int `yaml:"exit_code"`
}

// Fatal modes.
const (
	FatalModeReboot = "reboot"
	FatalModeExit   = "exit"
	FatalModeHalt   = "halt"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_NODE_SECTION_KEY
// For example: GRAYLOGIC_NODE_NETWORK_INTERFACE, GRAYLOGIC_NODE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading a file.
// Useful for CLI subcommands that only need the database path.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID:   "node-001",
			Name: "Gray Logic Node",
		},
		Bus: BusConfig{
			QueueSize:        4,
			PublishTimeoutMS: 1000,
			ReadTimeoutMS:    100,
		},
		Network: NetworkConfig{
			Interface:           "wlan0",
			RequireProvisioning: true,
			ResendOnStart:       true,
			WaitTimeoutSeconds:  5,
			DHCP: DHCPConfig{
				Enabled: true,
				Binary:  "/sbin/udhcpc",
				Args:    []string{"-f", "-i", "{iface}"},
			},
		},
		Provisioning: ProvisioningConfig{
			PublishTimeoutMS: 1000,
			Helper: HelperConfig{
				Binary: "/usr/libexec/graylogic/softap-helper",
			},
			Discoverability: DiscoverabilityConfig{
				Enabled:         true,
				DurationSeconds: 60,
				Service:         "_http._tcp",
				Domain:          "local.",
				Port:            80,
			},
		},
		Feedback: FeedbackConfig{
			WaitTimeoutSeconds: 5,
			FastBlinkMS:        200,
			SlowBlinkMS:        1000,
			PayloadTimeoutMS:   1000,
			GPIO: GPIOConfig{
				Chip: "gpiochip0",
				LEDs: LEDLines{
					Connectivity: LineConfig{Line: -1},
					Provisioning: LineConfig{Line: -1},
				},
				Buttons: ButtonLines{
					Publish: LineConfig{Line: -1},
					Reset:   LineConfig{Line: -1},
				},
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/node.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-node",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix:  "graylogic/node",
			MirrorStatus: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Fatal: FatalConfig{
			Mode:     FatalModeReboot,
			ExitCode: 70,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_NODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_NODE_ID"); v != "" {
		cfg.Node.ID = v
	}

	if v := os.Getenv("GRAYLOGIC_NODE_NETWORK_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}

	if v := os.Getenv("GRAYLOGIC_NODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_NODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_NODE_FATAL_MODE"); v != "" {
		cfg.Fatal.Mode = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Node.ID == "" {
		errs = append(errs, "node.id is required")
	}

	if c.Bus.QueueSize < 1 {
		errs = append(errs, "bus.queue_size must be at least 1")
	}
	if c.Bus.PublishTimeoutMS < 1 {
		errs = append(errs, "bus.publish_timeout_ms must be positive")
	}

	if c.Network.Interface == "" {
		errs = append(errs, "network.interface is required")
	}
	if c.Network.WaitTimeoutSeconds < 1 {
		errs = append(errs, "network.wait_timeout_seconds must be positive")
	}
	if c.Network.DHCP.Enabled && c.Network.DHCP.Binary == "" {
		errs = append(errs, "network.dhcp.binary is required when dhcp is enabled")
	}

	if c.Provisioning.Helper.Binary == "" {
		errs = append(errs, "provisioning.helper.binary is required")
	}
	if c.Provisioning.Discoverability.Enabled {
		d := c.Provisioning.Discoverability
		if d.Service == "" {
			errs = append(errs, "provisioning.discoverability.service is required")
		}
		if d.Port < 1 || d.Port > 65535 {
			errs = append(errs, "provisioning.discoverability.port must be between 1 and 65535")
		}
	}

	if c.Feedback.FastBlinkMS < 1 || c.Feedback.SlowBlinkMS < 1 {
		errs = append(errs, "feedback blink periods must be positive")
	}
	if c.Feedback.WaitTimeoutSeconds < 1 {
		errs = append(errs, "feedback.wait_timeout_seconds must be positive")
	}
	if c.Feedback.GPIO.Enabled && c.Feedback.GPIO.Chip == "" {
		errs = append(errs, "feedback.gpio.chip is required when gpio is enabled")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when output is file")
	}

	switch c.Fatal.Mode {
	case FatalModeReboot, FatalModeExit, FatalModeHalt:
	default:
		errs = append(errs, fmt.Sprintf("fatal.mode %q must be reboot, exit, or halt", c.Fatal.Mode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPublishTimeout returns the bus publish timeout as a Duration.
func (c *Config) GetPublishTimeout() time.Duration {
	return time.Duration(c.Bus.PublishTimeoutMS) * time.Millisecond
}

// GetReadTimeout returns the bus read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Bus.ReadTimeoutMS) * time.Millisecond
}

// GetNetworkWaitTimeout returns the network coordinator wait timeout.
func (c *Config) GetNetworkWaitTimeout() time.Duration {
	return time.Duration(c.Network.WaitTimeoutSeconds) * time.Second
}

// GetFeedbackWaitTimeout returns the feedback coordinator wait timeout.
func (c *Config) GetFeedbackWaitTimeout() time.Duration {
	return time.Duration(c.Feedback.WaitTimeoutSeconds) * time.Second
}

// GetDiscoverabilityWindow returns how long the node stays discoverable
// after provisioning completes.
func (c *Config) GetDiscoverabilityWindow() time.Duration {
	return time.Duration(c.Provisioning.Discoverability.DurationSeconds) * time.Second
}
