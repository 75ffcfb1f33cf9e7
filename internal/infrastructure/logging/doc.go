// Package logging provides structured logging for the Gray Logic node.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across every coordinator.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Append-only file sink with Sync for the fatal path
//
// # Configuration
//
// Logging is configured via the LoggingConfig in node.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "/var/log/graylogic/node.log"
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("interface up", "iface", "wlan0")
//	logger.Error("connect request failed", "error", err)
//
// # Security
//
// Never log WiFi passphrases or broker passwords. Credential events
// log the SSID only.
package logging
