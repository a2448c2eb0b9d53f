package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"airquality-server/internal/config"
	"airquality-server/internal/logging"
)

// cli holds what every subcommand needs once the environment is parsed.
type cli struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Beijing air-quality dashboard",
		Long:          "Serves the air-quality dashboard and JSON API over the station readings dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "config error: %v\n", err)
				return err
			}
			c.cfg = cfg
			c.logger = logging.New(logging.Options{
				App:     appName,
				Version: version,
				Env:     cfg.AppEnv,
				Level:   cfg.LogLevel,
			})
			slog.SetDefault(c.logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(c), newRFMCmd(c), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skips the root PersistentPreRunE: no config needed.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	}
}
