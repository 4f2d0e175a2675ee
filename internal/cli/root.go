// Package cli holds the landrop command tree.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/landrop/internal/logging"
	"github.com/BioHazard786/landrop/internal/ui"
	"github.com/BioHazard786/landrop/internal/version"
)

var (
	flagRelay     string
	flagSTUN      string
	flagChunkSize int
	flagTimeout   string
	flagCodec     string
	flagLogLevel  string
	flagHistory   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "landrop",
	Short: "Send files to devices on your local network",
	Long: `landrop moves files directly between devices on the same network over
WebRTC data channels. A small relay introduces the peers to each other; the
files themselves never pass through it.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// The live views own the terminal, so only warnings are logged by default.
		logging.Init(flagLogLevel, slog.LevelWarn)
	},
}

// Execute runs the command tree until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagRelay, "relay", "", "Relay address (host:port or ws:// URL)")
	flags.StringVar(&flagSTUN, "stun", "", `STUN server URL, or "none" for local candidates only`)
	flags.IntVar(&flagChunkSize, "chunk-size", 0, "Chunk size in bytes when sending")
	flags.StringVar(&flagTimeout, "timeout", "", "Negotiation timeout, e.g. 30s")
	flags.StringVar(&flagCodec, "codec", "", "Data channel encoding: json or msgpack")
	flags.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&flagHistory, "history", "", "Path of the transfer history database")
}
