// Package cli implements the framescope command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tyde/framescope/internal/config"
)

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the framescope root command.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "framescope",
		Short: "Frame-oriented instrumentation profiler",
		Long: `framescope drives a demonstration frame loop through the profiler and
prints, every frame, the smoothed share of the frame spent in each region.

Examples:
  framescope run --frames 10
  framescope run --frame-seconds 0.016 --metrics-addr :9464
  framescope config show`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <user config dir>/framescope/config.yaml)")

	resolve := func() (string, error) {
		if configPath != "" {
			return configPath, nil
		}
		return config.Path()
	}

	cmd.AddCommand(newRunCmd(resolve))
	cmd.AddCommand(newConfigCmd(resolve))
	return cmd
}
