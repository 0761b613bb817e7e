// Package config provides environment-based configuration for custodian.
//
// Configuration is loaded from environment variables using Viper, with sensible
// defaults for development. This package handles database connection settings,
// tuple-store endpoints, logging levels, and background pass tuning.
//
// # Environment Variables
//
//   - DB_TYPE: Database type (sqlite, postgres, mysql). Default: sqlite
//   - DSN: Database connection string. Default: custodian.db
//   - SKIP_AUTO_MIGRATE: Skip automatic database migrations. Default: false
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - PORT: HTTP server port. Default: 8080
//   - TUPLE_STORE_URL: Base URL of the external tuple store. Default: http://localhost:8090
//   - TUPLE_STORE_ID: Store identifier in the tuple-store URL path.
//   - TUPLE_TIMEOUT: Timeout for tuple-store calls. Default: 5s
//   - CLASSIFIER_URL: Base URL of the intent classification service.
//   - REDIS_ADDR: Redis address for the pending-action store. Empty selects
//     the in-memory store.
//   - PENDING_TTL: Lifetime of a pending conversational workflow. Default: 5m
//   - RECONCILE_BATCH: Tuple write batch size. Default: 10
//   - RECONCILE_WORKERS: Concurrent write batches per pass. Default: 4
//   - RESOLVER_WORKERS: Concurrent capability checks per listing. Default: 8
//   - SWEEP_INTERVAL: Period of the pending-action sweep. Default: 1m
//
// # Example Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Starting on port %d with %s database\n", cfg.Port, cfg.DBType)
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBType          string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN             string `mapstructure:"DSN"`
	SkipAutoMigrate bool   `mapstructure:"SKIP_AUTO_MIGRATE"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	Port            int    `mapstructure:"PORT"`

	TupleStoreURL string        `mapstructure:"TUPLE_STORE_URL"`
	TupleStoreID  string        `mapstructure:"TUPLE_STORE_ID"`
	TupleTimeout  time.Duration `mapstructure:"TUPLE_TIMEOUT"`

	ClassifierURL string `mapstructure:"CLASSIFIER_URL"`

	RedisAddr  string        `mapstructure:"REDIS_ADDR"`
	PendingTTL time.Duration `mapstructure:"PENDING_TTL"`

	ReconcileBatch   int           `mapstructure:"RECONCILE_BATCH"`
	ReconcileWorkers int           `mapstructure:"RECONCILE_WORKERS"`
	ResolverWorkers  int           `mapstructure:"RESOLVER_WORKERS"`
	SweepInterval    time.Duration `mapstructure:"SWEEP_INTERVAL"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "custodian.db") // Default to sqlite if not provided
	viper.SetDefault("SKIP_AUTO_MIGRATE", false)
	viper.SetDefault("TUPLE_STORE_URL", "http://localhost:8090")
	viper.SetDefault("TUPLE_STORE_ID", "default")
	viper.SetDefault("TUPLE_TIMEOUT", 5*time.Second)
	viper.SetDefault("CLASSIFIER_URL", "")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("PENDING_TTL", 5*time.Minute)
	viper.SetDefault("RECONCILE_BATCH", 10)
	viper.SetDefault("RECONCILE_WORKERS", 4)
	viper.SetDefault("RESOLVER_WORKERS", 8)
	viper.SetDefault("SWEEP_INTERVAL", time.Minute)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
