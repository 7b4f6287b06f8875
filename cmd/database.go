package cmd

import (
	"fmt"

	"github.com/propshare-labs/distributor/internal/config"
	"github.com/propshare-labs/distributor/internal/logger"
	"github.com/propshare-labs/distributor/pkg/postgres"
	"github.com/propshare-labs/distributor/pkg/postgres/migrations"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Create the configured database if needed and run migrations",
	Run: func(cmd *cobra.Command, args []string) {
		initDatabaseCmd(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

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

		l.Sugar().Infow("Database is up to date",
			zap.String("database", cfg.DatabaseConfig.DbName),
		)
	},
}

func initDatabaseCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
