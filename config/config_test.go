package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.DBType != "sqlite" {
		t.Errorf("DBType = %q, want sqlite", cfg.DBType)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PendingTTL != 5*time.Minute {
		t.Errorf("PendingTTL = %v, want 5m", cfg.PendingTTL)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if cfg.ClassifierURL != "" {
		t.Errorf("ClassifierURL = %q, want empty", cfg.ClassifierURL)
	}
}

// Keys whose default is the empty string still have to be registered with
// viper, otherwise AutomaticEnv never feeds them into Unmarshal.
func TestLoadConfigEnvOverrides(t *testing.T) {
	viper.Reset()

	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CLASSIFIER_URL", "http://nlu:9000")
	t.Setenv("PENDING_TTL", "7m")
	t.Setenv("TUPLE_STORE_ID", "prod")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q, want redis:6379", cfg.RedisAddr)
	}
	if cfg.ClassifierURL != "http://nlu:9000" {
		t.Errorf("ClassifierURL = %q, want http://nlu:9000", cfg.ClassifierURL)
	}
	if cfg.PendingTTL != 7*time.Minute {
		t.Errorf("PendingTTL = %v, want 7m", cfg.PendingTTL)
	}
	if cfg.TupleStoreID != "prod" {
		t.Errorf("TupleStoreID = %q, want prod", cfg.TupleStoreID)
	}
}
