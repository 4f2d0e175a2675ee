package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/landrop/internal/config"
	"github.com/BioHazard786/landrop/internal/logging"
	"github.com/BioHazard786/landrop/internal/relay"
	"github.com/BioHazard786/landrop/internal/server"
	"github.com/BioHazard786/landrop/internal/version"
)

const shutdownTimeout = 5 * time.Second

var opts config.RelayOptions

var rootCmd = &cobra.Command{
	Use:          "landrop-relay",
	Short:        "Signaling relay for landrop peers",
	Version:      version.Version,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRelay(opts)
		if err != nil {
			return err
		}
		logging.Init(cfg.LogLevel, slog.LevelInfo)
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.RelayConfig) error {
	hub := relay.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.NewRouter(hub, cfg.SendBuffer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting signaling server", "addr", cfg.Addr, "version", version.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		stopHub()
		<-hub.Done()
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	// Upgraded connections are not tracked by the server; stopping the hub
	// closes them.
	stopHub()
	<-hub.Done()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Flags().StringVarP(&opts.Addr, "addr", "a", "", "Listen address (default :8080)")
	rootCmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.Flags().IntVar(&opts.SendBuffer, "send-buffer", 0, "Per-client outbound queue length")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("relay stopped", "error", err)
		stop()
		os.Exit(1)
	}
}
