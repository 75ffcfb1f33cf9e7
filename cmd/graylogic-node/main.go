// Gray Logic Node - status coordination for a field node.
//
// The node brings its radio up, runs SoftAP provisioning when no network
// credentials are stored, joins the network and connects to the site
// broker. LEDs and buttons reflect and drive that sequence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/node.yaml"

// configEnv overrides defaultConfigPath when --config is not given.
const configEnv = "GRAYLOGIC_NODE_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "graylogic-node",
		Short:         "Gray Logic field node",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		fmt.Sprintf("Configuration file (default $%s or %s)", configEnv, defaultConfigPath))

	resolve := func() string { return getConfigPath(configPath) }
	cmd.AddCommand(runCmd(resolve), credentialsCmd(resolve), versionCmd())
	return cmd
}

// getConfigPath returns the configuration file path: the flag, then the
// environment, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graylogic-node %s\ncommit: %s\nbuilt:  %s\n", version, commit, date)
		},
	}
}
