package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-node/internal/credentials"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/migrations"
)

func credentialsCmd(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Inspect or clear stored network credentials",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored networks (passphrases redacted)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(cmd.Context(), configPath(), func(store *credentials.Store) error {
					return listCredentials(cmd, store)
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Delete every stored network; the node provisions again on next start",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(cmd.Context(), configPath(), func(store *credentials.Store) error {
					n, err := store.DeleteAll(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d credential(s)\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

// withStore opens the node database without starting any coordinator.
// A missing config file falls back to the built-in defaults.
func withStore(ctx context.Context, configPath string, fn func(*credentials.Store) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return fn(credentials.NewStore(db.DB))
}

func listCredentials(cmd *cobra.Command, store *credentials.Store) error {
	list, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "no credentials stored")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SSID\tSECURITY\tPASSPHRASE\tUPDATED")
	for _, c := range list {
		c = c.Redacted()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.SSID, c.Security, c.Passphrase, c.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
