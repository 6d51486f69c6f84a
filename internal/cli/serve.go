package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hooktide/hooktide/internal/config"
	"github.com/hooktide/hooktide/internal/realtime"
	"github.com/hooktide/hooktide/internal/retention"
	"github.com/hooktide/hooktide/internal/server"
	"github.com/hooktide/hooktide/internal/storage"
	"github.com/hooktide/hooktide/internal/webhook"
)

var (
	servePort int
	serveHost string
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the Hooktide server.

The server will:
  - Initialize the configured storage backend (plus the fallback, if enabled)
  - Accept webhook notifications on POST /webhook
  - Serve the dashboard API under /api
  - Broadcast stored messages over the WebSocket feed at /api/realtime`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 3000, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}

	configureLogging(cfg.Logging)

	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := storage.NewRegistry()
	defer registry.CloseAllAdapters()

	store, err := registry.CreateFallbackAdapter(ctx, &cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	var hub *realtime.Hub
	opts := []webhook.ServiceOption{
		webhook.WithSecret(cfg.Webhook.Secret),
		webhook.WithBackendType(string(cfg.Storage.Primary.Type)),
	}
	if cfg.Realtime.Enabled {
		hub = realtime.NewHub(cfg.Realtime)
		opts = append(opts, webhook.WithBroadcaster(hub))
	}

	service := webhook.NewService(store, opts...)

	janitor := retention.NewJanitor(cfg.Retention, service)
	if err := janitor.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule retention cleanup")
	}
	defer janitor.Stop()

	srv := server.New(cfg, service, hub)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Error during shutdown")
		}
	}()

	logServerInfo(cfg)

	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
		return err
	}

	return nil
}

func logServerInfo(cfg *config.Config) {
	event := log.Info().
		Str("addr", cfg.Server.Address()).
		Str("primary_storage", string(cfg.Storage.Primary.Type)).
		Bool("fallback", cfg.Storage.EnableFallback).
		Bool("realtime", cfg.Realtime.Enabled).
		Bool("retention", cfg.Retention.Enabled)

	if cfg.Storage.EnableFallback {
		event = event.Str("fallback_storage", string(cfg.Storage.Fallback.Type))
	}

	event.Msg("Hooktide ready")
}
