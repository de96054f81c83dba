package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fleetcomply/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the compliance alert sweep",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (only used when config.toml does not set one)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, info, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 && !info.PortSpecified {
		cfg.Server.Port = servePort
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("fleetcomply starting",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("dev_mode", cfg.Server.DevMode),
		zap.String("config", info.Path),
	)
	if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		return err
	}
	logger.Info("fleetcomply stopped")
	return nil
}
