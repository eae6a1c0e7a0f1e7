package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/api"
	"github.com/solatis/rulekeeper/internal/core/auth"
	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/core/server"
	"github.com/solatis/rulekeeper/internal/core/telemetry"
	"github.com/solatis/rulekeeper/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start gRPC rule service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	def := config.DefaultServerConfig()
	serveCmd.Flags().String("host", def.Host, "gRPC server host")
	serveCmd.Flags().Int("port", def.Port, "gRPC server port")
	serveCmd.Flags().String("catalog", def.CatalogFile, "field catalog YAML (default: embedded catalog)")
	serveCmd.Flags().Duration("timeout", def.RequestTimeout, "per-request timeout")
	serveCmd.Flags().Int("max-conns", def.MaxConnections, "maximum concurrent streams per connection")
	serveCmd.Flags().Int("max-rule-size", def.MaxRuleBytes, "maximum rule JSON size in bytes")
	serveCmd.Flags().String("otlp-endpoint", def.MetricsEndpoint, "OTLP gRPC metrics collector (empty disables export)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	url, err := databaseURL()
	if err != nil {
		return err
	}
	database, err := db.Open(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	statuses, err := db.NewMigrator(database, logger.Named("migrate")).Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'rulekeeper migrate up' first", s.ID)
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET environment variable)", config.EnvPrefix)
	}
	authenticator := auth.NewAuthenticator(secrets, queries, logger.Named("auth"))

	registry, err := rules.LoadRegistry(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("failed to load field catalog: %w", err)
	}

	meterProvider, shutdownMetrics, err := telemetry.InitMetrics(ctx, cfg.MetricsEndpoint, "rulekeeper", logger.Named("telemetry"))
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}()

	service, err := api.NewRuleService(rules.NewEngine(registry), db.NewRuleStore(queries), cfg,
		logger.Named("api"), api.WithMeterProvider(meterProvider))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting rule service", "version", Version, "address", cfg.Address(), "secrets", len(secrets))
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
