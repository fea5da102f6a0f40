package main

import (
	"fmt"

	"github.com/TFMV/schelling/engine"
	"github.com/TFMV/schelling/metrics"
	"github.com/TFMV/schelling/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve one simulation over HTTP, with Prometheus metrics on /metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(config, cmd.ErrOrStderr())
		ctx, cancel := signalContext(logger)
		defer cancel()

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		collector, err := metrics.New(registry)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}

		eng, err := buildEngine(config, engine.WithLogger(logger), engine.WithRecorder(collector))
		if err != nil {
			return fmt.Errorf("failed to create engine: %w", err)
		}
		policy, err := engine.GetPolicy(config.Policy, config.Budget)
		if err != nil {
			return err
		}

		srv := server.New(eng, server.Config{
			Port:      config.Port,
			Policy:    policy,
			Collector: collector,
			Gatherer:  registry,
			Logger:    logger,
		})
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&config.Port, "port", 8080, "Port to listen on")
}
