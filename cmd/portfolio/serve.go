package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/folio/config"
	"github.com/mohammad-safakhou/folio/internal/logging"
	srv "github.com/mohammad-safakhou/folio/internal/server"
	"github.com/spf13/cobra"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if cmd.Flags().Changed("addr") {
				cfg.General.Listen = serveAddr
			}
			log := logging.New(cfg.General.LogLevel, cfg.General.LogFormat)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, cfg, log)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", ":8000", "listen address (overrides general.listen)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
