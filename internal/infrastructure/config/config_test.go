package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
node:
  id: "kitchen-node"
network:
  interface: "wlan1"
  require_provisioning: false
database:
  path: "/tmp/node.db"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
feedback:
  gpio:
    enabled: true
    chip: "gpiochip1"
    leds:
      connectivity:
        line: 17
      provisioning:
        line: 27
        active_low: true
fatal:
  mode: "exit"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Node.ID != "kitchen-node" {
		t.Errorf("Node.ID = %q, want %q", cfg.Node.ID, "kitchen-node")
	}
	if cfg.Network.Interface != "wlan1" {
		t.Errorf("Network.Interface = %q, want %q", cfg.Network.Interface, "wlan1")
	}
	if cfg.Network.RequireProvisioning {
		t.Error("Network.RequireProvisioning = true, want false")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if got := cfg.Feedback.GPIO.LEDs.Provisioning; got.Line != 27 || !got.ActiveLow {
		t.Errorf("Feedback.GPIO.LEDs.Provisioning = %+v, want line 27 active low", got)
	}
	// Unset lines keep the disabled default.
	if got := cfg.Feedback.GPIO.Buttons.Reset.Line; got != -1 {
		t.Errorf("Feedback.GPIO.Buttons.Reset.Line = %d, want -1", got)
	}
	if cfg.Fatal.Mode != FatalModeExit {
		t.Errorf("Fatal.Mode = %q, want %q", cfg.Fatal.Mode, FatalModeExit)
	}
	// Defaults survive partial files.
	if cfg.Bus.QueueSize != 4 {
		t.Errorf("Bus.QueueSize = %d, want 4", cfg.Bus.QueueSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/node.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
node:
  id: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for empty node.id, got nil")
	}
	if !strings.Contains(err.Error(), "node.id is required") {
		t.Errorf("Load() error = %v, want mention of node.id", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", modify: func(*Config) {}},
		{name: "missing node ID", modify: func(c *Config) { c.Node.ID = "" }, wantErr: true},
		{name: "zero queue size", modify: func(c *Config) { c.Bus.QueueSize = 0 }, wantErr: true},
		{name: "missing interface", modify: func(c *Config) { c.Network.Interface = "" }, wantErr: true},
		{name: "dhcp without binary", modify: func(c *Config) { c.Network.DHCP.Binary = "" }, wantErr: true},
		{name: "dhcp disabled without binary", modify: func(c *Config) {
			c.Network.DHCP.Enabled = false
			c.Network.DHCP.Binary = ""
		}},
		{name: "missing helper binary", modify: func(c *Config) { c.Provisioning.Helper.Binary = "" }, wantErr: true},
		{name: "discoverability port out of range", modify: func(c *Config) {
			c.Provisioning.Discoverability.Port = 70000
		}, wantErr: true},
		{name: "zero blink period", modify: func(c *Config) { c.Feedback.FastBlinkMS = 0 }, wantErr: true},
		{name: "gpio without chip", modify: func(c *Config) {
			c.Feedback.GPIO.Enabled = true
			c.Feedback.GPIO.Chip = ""
		}, wantErr: true},
		{name: "invalid QoS", modify: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "influx enabled without url", modify: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "file logging without path", modify: func(c *Config) { c.Logging.Output = "file" }, wantErr: true},
		{name: "unknown fatal mode", modify: func(c *Config) { c.Fatal.Mode = "panic" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Node.ID = ""
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	if !strings.Contains(err.Error(), "node.id") || !strings.Contains(err.Error(), "mqtt.qos") {
		t.Errorf("Validate() error = %v, want both failures reported", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetPublishTimeout(); got != time.Second {
		t.Errorf("GetPublishTimeout() = %v, want 1s", got)
	}
	if got := cfg.GetReadTimeout(); got != 100*time.Millisecond {
		t.Errorf("GetReadTimeout() = %v, want 100ms", got)
	}
	if got := cfg.GetNetworkWaitTimeout(); got != 5*time.Second {
		t.Errorf("GetNetworkWaitTimeout() = %v, want 5s", got)
	}
	if got := cfg.GetDiscoverabilityWindow(); got != time.Minute {
		t.Errorf("GetDiscoverabilityWindow() = %v, want 1m", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_NODE_ID", "garage-node")
	t.Setenv("GRAYLOGIC_NODE_NETWORK_INTERFACE", "wlan9")
	t.Setenv("GRAYLOGIC_NODE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_NODE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_NODE_MQTT_PORT", "8883")
	t.Setenv("GRAYLOGIC_NODE_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_NODE_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_NODE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_NODE_FATAL_MODE", "halt")

	applyEnvOverrides(cfg)

	if cfg.Node.ID != "garage-node" {
		t.Errorf("Node.ID = %q, want %q", cfg.Node.ID, "garage-node")
	}
	if cfg.Network.Interface != "wlan9" {
		t.Errorf("Network.Interface = %q, want %q", cfg.Network.Interface, "wlan9")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v, want testuser/testpass", cfg.MQTT.Auth)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Fatal.Mode != FatalModeHalt {
		t.Errorf("Fatal.Mode = %q, want %q", cfg.Fatal.Mode, FatalModeHalt)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYLOGIC_NODE_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Node.ID == "" {
		t.Error("defaultConfig should have non-empty Node.ID")
	}
	if cfg.Feedback.FastBlinkMS != 200 || cfg.Feedback.SlowBlinkMS != 1000 {
		t.Errorf("blink periods = %d/%d, want 200/1000", cfg.Feedback.FastBlinkMS, cfg.Feedback.SlowBlinkMS)
	}
	if cfg.Fatal.Mode != FatalModeReboot {
		t.Errorf("Fatal.Mode = %q, want %q", cfg.Fatal.Mode, FatalModeReboot)
	}
	if !cfg.Network.RequireProvisioning {
		t.Error("defaultConfig should gate network on provisioning")
	}
}
