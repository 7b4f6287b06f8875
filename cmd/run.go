package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/propshare-labs/distributor/internal/config"
	"github.com/propshare-labs/distributor/internal/logger"
	"github.com/propshare-labs/distributor/internal/metrics"
	"github.com/propshare-labs/distributor/internal/metrics/prometheus"
	"github.com/propshare-labs/distributor/internal/shutdown"
	"github.com/propshare-labs/distributor/pkg/claims"
	"github.com/propshare-labs/distributor/pkg/distribution"
	"github.com/propshare-labs/distributor/pkg/eventBus"
	"github.com/propshare-labs/distributor/pkg/fees"
	"github.com/propshare-labs/distributor/pkg/postgres"
	"github.com/propshare-labs/distributor/pkg/postgres/migrations"
	"github.com/propshare-labs/distributor/pkg/proofs"
	"github.com/propshare-labs/distributor/pkg/rpcServer"
	"github.com/propshare-labs/distributor/pkg/transfer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the distributor",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()
		ctx := context.Background()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		if err := cfg.Validate(); err != nil {
			l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
		}

		sinkClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatal("Failed to setup metrics clients", zap.Error(err))
		}

		sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, sinkClients)
		if err != nil {
			l.Sugar().Fatal("Failed to setup metrics sink", zap.Error(err))
		}

		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true

		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			l.Fatal("Failed to setup postgres connection", zap.Error(err))
		}

		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			l.Fatal("Failed to create gorm instance", zap.Error(err))
		}

		migrator := migrations.NewMigrator(pg.Db, grm, l)
		if err = migrator.MigrateAll(); err != nil {
			l.Fatal("Failed to migrate", zap.Error(err))
		}

		calculator, err := fees.NewCalculator(
			cfg.FeeConfig.PlatformRateBips,
			cfg.FeeConfig.MaintenanceRateBips,
		)
		if err != nil {
			l.Sugar().Fatalw("Failed to create fee calculator", zap.Error(err))
		}

		eb := eventBus.NewEventBus(l)

		registry := distribution.NewRegistry(grm, l, cfg)
		escrowLedger := transfer.NewEscrowLedger(grm, l)
		claimsEngine := claims.NewClaimsEngine(grm, l, cfg, calculator, escrowLedger, eb, sink)
		proofStore := proofs.NewProofStore(registry, l)

		rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			HttpPort: cfg.RpcConfig.HttpPort,
		}, registry, claimsEngine, proofStore, escrowLedger, eb, sink, l)

		// RPC channel to notify the RPC server to shutdown gracefully
		rpcChannel := make(chan bool)
		if err := rpc.Start(ctx, rpcChannel); err != nil {
			l.Sugar().Fatalw("Failed to start RPC server", zap.Error(err))
		}

		promChannel := make(chan bool)
		if cfg.PrometheusConfig.Enabled {
			promServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			if err := promServer.Start(promChannel); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		l.Sugar().Info("Started Distributor")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			rpcChannel <- true
			if cfg.PrometheusConfig.Enabled {
				promChannel <- true
			}
		}, time.Second*5, l)
	},
}

func initRunCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
