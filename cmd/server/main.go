package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-rooms/internal/app"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/log"
)

var (
	configPath string
	addr       string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "wirechat-server",
	Short:        "WebSocket chat server with private rooms and presence",
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (created with defaults if missing)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, overrides config")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	bootLogger := log.New("info")

	cfg, resolvedPath, err := config.Load(bootLogger, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(config.Config{Addr: addr, LogLevel: logLevel})

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", resolvedPath).Str("addr", cfg.Addr).Msg("starting wirechat server")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
