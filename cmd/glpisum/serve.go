package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/glpisum/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			proc, pipeline, err := a.processor(ctx)
			if err != nil {
				return err
			}
			srv := server.New(server.Options{
				Dispatcher: proc,
				LLM:        pipeline,
				Logger:     a.logger,
				Metrics:    a.metrics,
				Gatherer:   a.registry,
			})

			addr := a.cfg.Server.Address
			if serveAddr != "" {
				addr = serveAddr
			}
			err = srv.Run(ctx, addr, a.cfg.Server.ShutdownTimeout)
			a.logger.Info("waiting for in-flight tasks")
			proc.Wait()
			if err != nil {
				a.logger.Error("server stopped", zap.Error(err))
			}
			return err
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.address, :8001)")
	return serve
}
