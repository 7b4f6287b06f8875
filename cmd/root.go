package cmd

import (
	"os"
	"strings"

	"github.com/propshare-labs/distributor/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "distributor",
	Short: "Commit-and-claim payout distribution for fractionalized assets",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.EthereumRpcBaseUrl, "", `e.g. "http://<hostname>:8545"`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "distributor", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "distributor", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL ssl mode`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7200, `http rpc port`)

	rootCmd.PersistentFlags().Uint64(config.FeePlatformRateBips, 250, `Platform fee in basis points`)
	rootCmd.PersistentFlags().Uint64(config.FeeMaintenanceRateBips, 100, `Maintenance fee in basis points`)
	rootCmd.PersistentFlags().String(config.FeePlatformReceiver, "", `Platform fee receiver address`)
	rootCmd.PersistentFlags().String(config.FeeMaintenanceReceiver, "", `Maintenance fee receiver address`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(runVersionCmd)

	treeCmd.PersistentFlags().String("input", "", "Path to the holder balance CSV (required)")
	treeCmd.PersistentFlags().String("amount", "", "Distribution total amount in base units (required)")

	snapshotCmd.PersistentFlags().String("token", "", "Token contract address (required)")
	snapshotCmd.PersistentFlags().String("holders", "", "Path to the candidate holder CSV (required)")
	snapshotCmd.PersistentFlags().String("amount", "", "Distribution total amount in base units (required)")
	snapshotCmd.PersistentFlags().Uint64("block-number", 0, "Block number to snapshot at")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
