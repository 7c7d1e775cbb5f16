package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment   string        `mapstructure:"environment"`
	ServerAddress string        `mapstructure:"server.address"`
	ServerTimeout time.Duration `mapstructure:"server.timeout"`
	LogLevel      string        `mapstructure:"logging.level"`
	DB            DatabaseConfig
	Redis         RedisConfig
	Azure         AzureConfig
	Elastic       ElasticConfig
	Tracing       TracingConfig
	SLA           SLAConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN             string        `mapstructure:"database.dsn"`
	MaxOpenConns    int           `mapstructure:"database.max_open_conns"`
	MaxIdleConns    int           `mapstructure:"database.max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"database.conn_max_lifetime"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"redis.host"`
	Port     int    `mapstructure:"redis.port"`
	Password string `mapstructure:"redis.password"`
	DB       int    `mapstructure:"redis.db"`
	Enabled  bool   `mapstructure:"redis.enabled"`
}

// AzureConfig holds Azure Service Bus configuration
type AzureConfig struct {
	ConnectionString    string `mapstructure:"azure.queue_conn_str"`
	ComplianceQueue     string `mapstructure:"azure.compliance_queue"`
	CostingQueue        string `mapstructure:"azure.costing_queue"`
	FieldReceptionQueue string `mapstructure:"azure.field_reception_queue"`
	Enabled             bool   `mapstructure:"azure.enabled"`
}

// ElasticConfig holds Elasticsearch configuration
type ElasticConfig struct {
	URL      string `mapstructure:"elastic.url"`
	Username string `mapstructure:"elastic.username"`
	Password string `mapstructure:"elastic.password"`
	Index    string `mapstructure:"elastic.index"`
	Enabled  bool   `mapstructure:"elastic.enabled"`
}

// TracingConfig holds New Relic configuration
type TracingConfig struct {
	LicenseKey     string `mapstructure:"tracing.license_key"`
	AppName        string `mapstructure:"tracing.app_name"`
	LogEnabled     bool   `mapstructure:"tracing.log_enabled"`
	DistribTracing bool   `mapstructure:"tracing.distributed_tracing_enabled"`
}

// SLAConfig holds the stale-load sweep configuration. Thresholds map a load
// status to the maximum time a load may sit in it before the worker flags it.
type SLAConfig struct {
	SweepInterval time.Duration            `mapstructure:"sla.sweep_interval"`
	Thresholds    map[string]time.Duration `mapstructure:"sla.thresholds"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply
	}

	// Enable environment variables to override config
	v.SetEnvPrefix("LOGISTICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.address", "0.0.0.0:8097")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("logging.level", "info")

	v.SetDefault("database.dsn", "host=localhost port=5432 user=postgres password=postgres dbname=logistics_db sslmode=disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", true)

	v.SetDefault("azure.compliance_queue", "compliance-manifests")
	v.SetDefault("azure.costing_queue", "cost-accruals")
	v.SetDefault("azure.field_reception_queue", "field-reception")
	v.SetDefault("azure.enabled", false)

	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.index", "load-transitions")
	v.SetDefault("elastic.enabled", false)

	v.SetDefault("tracing.app_name", "Logistics Service")
	v.SetDefault("tracing.distributed_tracing_enabled", true)

	v.SetDefault("sla.sweep_interval", "10m")
	v.SetDefault("sla.thresholds", map[string]time.Duration{
		"ASSIGNED":             24 * time.Hour,
		"ACCEPTED":             12 * time.Hour,
		"EN_ROUTE_PICKUP":      6 * time.Hour,
		"AT_PICKUP":            4 * time.Hour,
		"EN_ROUTE_DESTINATION": 12 * time.Hour,
		"AT_DESTINATION":       24 * time.Hour,
		"IN_DISPOSAL":          72 * time.Hour,
	})
}
