// Command loki-mcp-gateway runs the Loki MCP gateway: an HTTP server
// exposing a read-only, tool-calling interface over a Loki-compatible
// log backend, with caching, rate limiting and cost guardrails.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rcourtman/loki-mcp-gateway/internal/backend"
	"github.com/rcourtman/loki-mcp-gateway/internal/config"
	"github.com/rcourtman/loki-mcp-gateway/internal/dispatcher"
	"github.com/rcourtman/loki-mcp-gateway/internal/httpapi"
	"github.com/rcourtman/loki-mcp-gateway/internal/telemetry"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "loki-mcp-gateway",
	Short:   "Loki MCP gateway - a read-only, tool-calling interface over a Loki-compatible log backend",
	Long:    `loki-mcp-gateway translates MCP tool calls into Loki queries, enforcing caching, rate limiting and cost guardrails along the way.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("loki-mcp-gateway %s\nBuild time: %s\nGit commit: %s\n", Version, BuildTime, GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML configuration file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(configPath, config.Flags{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	client, err := backend.New(backend.Config{
		URL:      cfg.Backend.URL,
		TenantID: cfg.Backend.TenantID,
		AuthType: cfg.Backend.AuthType,
		Username: cfg.Backend.Username,
		Password: cfg.Backend.Password,
		Token:    cfg.Backend.Token,
		CACert:   cfg.Backend.CACert,
		Timeout:  cfg.Backend.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build backend client")
	}

	reg, err := telemetry.New(cfg.Metrics.Prefix)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build telemetry registry")
	}

	disp, err := dispatcher.New(cfg, client, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dispatcher")
	}

	server := httpapi.New(cfg, client, disp, reg)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("listen", cfg.Server.Listen).Msg("Gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	reloadChan := make(chan os.Signal, 1)

	// SIGTERM and SIGINT for shutdown
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	// SIGHUP for config reload
	signal.Notify(reloadChan, syscall.SIGHUP)

	for {
		select {
		case <-reloadChan:
			log.Info().Msg("Received SIGHUP, reloading configuration...")
			reloaded, err := config.Load(configPath, config.Flags{})
			if err != nil {
				log.Error().Err(err).Msg("Failed to reload configuration, keeping previous settings")
				continue
			}
			// Only the log level takes effect without a restart; cache,
			// guardrail and rate-limit settings are baked into the
			// dispatcher at construction time.
			cfg = reloaded
			if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
				zerolog.SetGlobalLevel(level)
			}
			log.Info().Msg("Configuration reloaded")

		case <-sigChan:
			log.Info().Msg("Shutting down gateway...")
			goto shutdown
		}
	}

shutdown:
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Gateway stopped")
}
