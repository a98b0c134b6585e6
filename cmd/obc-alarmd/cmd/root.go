package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/obc-alarm/internal/config"
	"github.com/oshokin/obc-alarm/internal/service/daemon"
	"github.com/oshokin/obc-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the onboard daemon.
	rootCmd = &cobra.Command{
		Use:   "obc-alarmd [listen-address]",
		Short: "Run the onboard alarm scheduler and ground link.",
		Long: `Starts the onboard alarm daemon.

The daemon multiplexes housekeeping jobs and time-tagged commands onto the
single alarm register of the RTC, executes uplinked commands and streams
their responses back over the ground link.

Only the port from ground_link_addr is used for listening (e.g., :50051).
Listen address can be provided as argument to override config.
Pending alarms are mirrored to the alarm store and restored at start-up.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return daemon.Run(ctx, &daemon.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			})
		},
	}
)

// Execute runs the obc-alarmd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
