package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadMemoryDriverNeedsNoDatabaseEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", DriverMemory)
	t.Setenv("DB_HOST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if cfg.Pipeline.Interval != 5*time.Second {
		t.Errorf("default interval = %s, want 5s", cfg.Pipeline.Interval)
	}
	if cfg.Pipeline.SnapshotReadings != 10 {
		t.Errorf("default snapshot size = %d, want 10", cfg.Pipeline.SnapshotReadings)
	}
	if cfg.Thresholds.MoistureCritical != 25 || cfg.Thresholds.PHMax != 7.5 {
		t.Errorf("unexpected default thresholds: %+v", cfg.Thresholds)
	}
	if cfg.Kafka.Enabled() {
		t.Errorf("kafka mirror should be disabled without brokers")
	}
}

func TestLoadPostgresRequiresEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", DriverPostgres)
	for _, key := range postgresEnvVars {
		t.Setenv(key, "")
	}

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DB_HOST") {
		t.Fatalf("expected missing DB_HOST error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", DriverMemory)
	t.Setenv("INGEST_INTERVAL", "250ms")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("THRESHOLD_TEMPERATURE_MAX", "38.5")
	t.Setenv("DEVICE_API_KEYS", "a,,b")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Pipeline.Interval != 250*time.Millisecond {
		t.Errorf("interval = %s", cfg.Pipeline.Interval)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Kafka.Enabled() {
		t.Errorf("kafka mirror should be enabled")
	}
	if cfg.Thresholds.TemperatureMax != 38.5 {
		t.Errorf("temperature max = %v", cfg.Thresholds.TemperatureMax)
	}
	if len(cfg.Security.DeviceAPIKeys) != 2 {
		t.Errorf("api keys = %v", cfg.Security.DeviceAPIKeys)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DRIVER", DriverMemory)
	t.Setenv("READING_SOURCE", "serial")
	t.Setenv("THRESHOLD_PH_MIN", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"READING_SOURCE", "THRESHOLD_PH_MIN"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
