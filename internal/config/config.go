package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "DISTRIBUTOR"

const (
	Debug = "debug"

	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db_name"
	DatabaseSchemaName = "database.schema_name"
	DatabaseSSLMode    = "database.ssl_mode"

	EthereumRpcBaseUrl = "ethereum.rpc-url"

	RpcHttpPort = "rpc.http-port"

	FeePlatformRateBips    = "fees.platform-rate-bips"
	FeeMaintenanceRateBips = "fees.maintenance-rate-bips"
	FeePlatformReceiver    = "fees.platform-receiver"
	FeeMaintenanceReceiver = "fees.maintenance-receiver"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample-rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"
)

// MaxCombinedFeeRateBips bounds the platform + maintenance rates. 10_000
// basis points is 100% of the claimed amount.
const MaxCombinedFeeRateBips = 10_000

type Config struct {
	Debug bool

	DatabaseConfig    DatabaseConfig
	EthereumRpcConfig EthereumRpcConfig
	RpcConfig         RpcConfig
	FeeConfig         FeeConfig
	DataDogConfig     DataDogConfig
	PrometheusConfig  PrometheusConfig
}

type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
	SSLMode    string
}

type EthereumRpcConfig struct {
	BaseUrl string
}

type RpcConfig struct {
	HttpPort int
}

type FeeConfig struct {
	PlatformRateBips       uint64
	MaintenanceRateBips    uint64
	PlatformFeeReceiver    string
	MaintenanceFeeReceiver string
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		DatabaseConfig: DatabaseConfig{
			Host:       viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:       viper.GetInt(normalizeFlagName(DatabasePort)),
			User:       viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:   viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:     viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName: viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:    viper.GetString(normalizeFlagName(DatabaseSSLMode)),
		},

		EthereumRpcConfig: EthereumRpcConfig{
			BaseUrl: viper.GetString(normalizeFlagName(EthereumRpcBaseUrl)),
		},

		RpcConfig: RpcConfig{
			HttpPort: viper.GetInt(normalizeFlagName(RpcHttpPort)),
		},

		FeeConfig: FeeConfig{
			PlatformRateBips:       viper.GetUint64(normalizeFlagName(FeePlatformRateBips)),
			MaintenanceRateBips:    viper.GetUint64(normalizeFlagName(FeeMaintenanceRateBips)),
			PlatformFeeReceiver:    viper.GetString(normalizeFlagName(FeePlatformReceiver)),
			MaintenanceFeeReceiver: viper.GetString(normalizeFlagName(FeeMaintenanceReceiver)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},
	}
}

// Validate rejects configurations that would let claims be processed with fee
// rates that consume more than the full claimed amount.
func (c *Config) Validate() error {
	combined := c.FeeConfig.PlatformRateBips + c.FeeConfig.MaintenanceRateBips
	if combined > MaxCombinedFeeRateBips {
		return fmt.Errorf("combined fee rate %d bips exceeds maximum of %d", combined, MaxCombinedFeeRateBips)
	}
	return nil
}

// KebabToSnakeCase produces the viper key for a flag name. Binding and
// reading must both go through it or flag values never reach the config.
func KebabToSnakeCase(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

func normalizeFlagName(s string) string {
	return KebabToSnakeCase(s)
}
