package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tanmay/hyperbole/internal/config"
	"github.com/tanmay/hyperbole/internal/logger"
)

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "override server.port")
	serveCmd.Flags().String("transport", "", "override server.transport (nethttp or fasthttp)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("transport") {
			cfg.Server.Transport, _ = cmd.Flags().GetString("transport")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := buildServer(ctx, cfg, log)
		if err != nil {
			return err
		}

		log.Info("starting", zap.String("version", version), zap.Strings("routes", s.Routes()))
		return s.Listen(ctx, cfg.Server.Port)
	},
}
