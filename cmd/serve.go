// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/observability"
	"github.com/xkilldash9x/pagewright/internal/server"
	"github.com/xkilldash9x/pagewright/internal/service"
)

// newServeCmd creates the `serve` command, which exposes the automation core
// as MCP tools.
func newServeCmd(factory service.ComponentFactory) *cobra.Command {
	var transport, address string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve page automation as MCP tools over stdio or streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, factory, func(ctx context.Context, c *service.Components) error {
				cfg, err := getConfigFromContext(ctx)
				if err != nil {
					return err
				}
				serverCfg := cfg.Server()
				if cmd.Flags().Changed("transport") {
					serverCfg.Transport = transport
				}
				if cmd.Flags().Changed("address") {
					serverCfg.Address = address
				}

				logger := observability.GetLogger()
				if c.Metrics != nil {
					stop := serveMetrics(cfg.Metrics(), c.Metrics, logger)
					defer stop()
				}

				srv := server.New(c.Orchestrator, serverCfg, Version, logger)
				return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	serveCmd.Flags().StringVarP(&transport, "transport", "t", server.TransportStdio, "transport: stdio or streamable-http")
	serveCmd.Flags().StringVar(&address, "address", "", "listen address for streamable-http (overrides config)")
	return serveCmd
}

// serveMetrics exposes /metrics in the background. The returned func stops it.
func serveMetrics(cfg config.MetricsConfig, m *observability.Metrics, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	httpServer := &http.Server{Addr: cfg.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics.", zap.String("address", cfg.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed.", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown failed.", zap.Error(err))
			_ = httpServer.Close()
		}
	}
}
