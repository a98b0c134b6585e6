package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/obc-alarm/internal/config"
	"github.com/oshokin/obc-alarm/internal/service/ground"
	"github.com/oshokin/obc-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// address overrides ground_link_addr.
	address string
	// params is the hex parameter block of the uplinked command.
	params string
	// at is the absolute time tag.
	at string
	// in is the relative time tag.
	in time.Duration
	// count stops the downlink after that many responses.
	count int

	// rootCmd groups the ground station subcommands.
	rootCmd = &cobra.Command{
		Use:   "obc-ground",
		Short: "Ground station for the onboard alarm daemon.",
		Long: `Uplinks commands to the onboard computer and prints downlinked responses.

Commands run immediately unless a time tag is given with --at (RFC 3339 or
Unix seconds) or --in (delay from now), in which case the onboard scheduler
runs them at that time.`,
	}

	// uplinkCmd sends one command.
	uplinkCmd = &cobra.Command{
		Use:   "uplink <command>",
		Short: "Uplink a command, optionally time-tagged.",
		Long: `Uplinks a single command by name, for example ping, rtc_sync,
downlink_telem, downlink_logs_next_pass, micro_sd_format or exec_obc_reset.

rtc_sync without --params sends the ground clock. The request is retried
while the onboard command queue is full.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return ground.Uplink(ctx, &ground.UplinkOptions{
				Options: ground.Options{
					ConfigPath: configPath,
					Address:    address,
				},
				Commands: []ground.CommandInput{{
					Name:   args[0],
					Params: params,
					At:     at,
					In:     in,
				}},
			})
		},
	}

	// downlinkCmd prints responses.
	downlinkCmd = &cobra.Command{
		Use:   "downlink",
		Short: "Print command responses as they are downlinked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return ground.Downlink(ctx, &ground.DownlinkOptions{
				Options: ground.Options{
					ConfigPath: configPath,
					Address:    address,
					Out:        cmd.OutOrStdout(),
				},
				Count: count,
			})
		},
	}
)

// Execute runs the obc-ground CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "ground link address, overrides config")

	uplinkCmd.Flags().StringVarP(&params, "params", "p", "", "hex-encoded parameter block")
	uplinkCmd.Flags().StringVar(&at, "at", "", "execution time, RFC 3339 or Unix seconds")
	uplinkCmd.Flags().DurationVar(&in, "in", 0, "execution delay from now")

	downlinkCmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many responses")

	rootCmd.AddCommand(uplinkCmd, downlinkCmd)
}
