package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simp-lee/innkeeper/internal/app"
	"github.com/simp-lee/innkeeper/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	serve := func(*cobra.Command, []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}
		return a.Run()
	}

	rootCmd := &cobra.Command{
		Use:   "innkeeper",
		Short: "Hotel, room and booking API server",
		Long: `Innkeeper serves the hotel, room, booking and billing collections
over a JSON API with soft delete, pagination and relation expansion.

Examples:
  # Start the server with the default configuration
  innkeeper serve

  # Create or update the database schema
  innkeeper migrate --config configs/config.yaml`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         serve,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := app.RunMigrations(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
			return nil
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: driver=%s mode=%s addr=%s:%d\n",
				cfg.Database.Driver, cfg.Server.Mode, cfg.Server.Host, cfg.Server.Port)
			return nil
		},
	})

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
