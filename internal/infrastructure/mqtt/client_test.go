package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-node-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "graylogic/node",
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("graylogic/node", "kitchen")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Availability", topics.Availability(), "graylogic/node/kitchen/availability"},
		{"Status", topics.Status("network"), "graylogic/node/kitchen/status/network"},
		{"Payload", topics.Payload(), "graylogic/node/kitchen/payload"},
		{"DefaultPrefix", NewTopics("", "n1").Payload(), "graylogic/node/n1/payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "node"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "graylogic-node-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "node" || opts.Password != "secret" {
		t.Errorf("credentials not applied: %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.ConnectRetry {
		t.Error("auto-reconnect and connect retry should be enabled")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS should not be configured for plain tcp")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("graylogic/node", "kitchen"), "graylogic-node-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "graylogic/node/kitchen/availability" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("will should be retained")
	}

	var p availabilityPayload
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatalf("will payload not JSON: %v", err)
	}
	if p.Status != "offline" || p.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", p)
	}
}

// =============================================================================
// Client Tests (no broker)
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on empty client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := New(testConfig(), NewTopics("", "n1"))
	if client.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
}

func TestPublishValidation(t *testing.T) {
	client := New(testConfig(), NewTopics("", "n1"))
	ctx := context.Background()

	if err := client.Publish(ctx, "", []byte("x"), false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: error = %v, want ErrInvalidTopic", err)
	}

	big := make([]byte, maxPayloadSize+1)
	if err := client.Publish(ctx, "t", big, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized: error = %v, want ErrPublishFailed", err)
	}

	if err := client.Publish(ctx, "t", []byte("x"), false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: error = %v, want ErrNotConnected", err)
	}

	bad := testConfig()
	bad.QoS = 3
	if err := New(bad, NewTopics("", "n1")).Publish(ctx, "t", nil, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: error = %v, want ErrInvalidQoS", err)
	}
}

func TestConnect_ContextCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999 // nothing listens here

	client := New(cfg, NewTopics("", "n1"))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := client.Connect(ctx)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after failed connect")
	}
}

func TestDisconnectCallback(t *testing.T) {
	client := New(testConfig(), NewTopics("", "n1"))

	var mu sync.Mutex
	var got error
	client.SetOnDisconnect(func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	})

	lost := errors.New("link lost")
	client.setConnected(true)
	client.handleDisconnect(lost)

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(got, lost) {
		t.Errorf("callback error = %v, want %v", got, lost)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}

func TestSetLogger(t *testing.T) {
	client := New(testConfig(), NewTopics("", "n1"))

	client.SetLogger(&mockLogger{})
	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}
	client.SetLogger(nil)
	if client.getLogger() != nil {
		t.Error("getLogger() should be nil after SetLogger(nil)")
	}
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
