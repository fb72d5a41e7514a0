// Package cmd assembles the sentinel command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tphakala/sentinel-go/cmd/notify"
	"github.com/tphakala/sentinel-go/cmd/realtime"
	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/logging"
)

// RootCommand creates and returns the root command.
func RootCommand() *cobra.Command {
	var configPath string
	var debug bool
	settings := &conf.Settings{}

	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Sentinel multi-camera weapon detection pipeline",
		Long: "Sentinel pulls frames from configured cameras, runs them through an " +
			"external detection oracle and turns weapon detections into deduplicated, " +
			"multi-channel security alerts.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		*settings = *loaded

		if debug {
			settings.Debug = true
		}
		level := slog.LevelInfo
		if settings.Debug {
			level = slog.LevelDebug
		}
		logging.Init(level)
		return nil
	}

	rootCmd.AddCommand(
		realtime.Command(settings),
		notify.Command(settings),
	)
	return rootCmd
}
