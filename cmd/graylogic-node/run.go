package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/node"
)

func runCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the node until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath())
		},
	}
}

// run is the node lifecycle, separated from the command for testability.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version).With("node_id", cfg.Node.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	n, err := node.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("building node: %w", err)
	}
	defer func() {
		log.Info("releasing resources")
		if closeErr := n.Close(); closeErr != nil {
			log.Error("error during shutdown", "error", closeErr)
		}
		_ = log.Sync() //nolint:errcheck // nothing left to report to
	}()

	log.Info("Gray Logic Node started", "iface", cfg.Network.Interface)
	if err := n.Run(ctx); err != nil {
		return err
	}
	log.Info("shutdown signal received")
	return nil
}
