package config

import (
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxDistanceKm != 50 || cfg.LearningRate != 0.05 {
		t.Fatalf("scoring defaults wrong: %+v", cfg)
	}
	if cfg.ArrivalRadiusM != 25 || cfg.TrackingMinMove != 10 || cfg.TrackingMinWait != 30*time.Second {
		t.Fatalf("tracking defaults wrong: %+v", cfg)
	}
	if cfg.RedisGeoKey != "mechanics_geo" || cfg.KafkaTopic != "mechanic-locations" {
		t.Fatalf("infra defaults wrong: %+v", cfg)
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("MAX_DISTANCE_KM", "30")
	t.Setenv("LEARNING_RATE", "0.1")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxDistanceKm != 30 || cfg.LearningRate != 0.1 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
}

func TestLoadServerConfigValidation(t *testing.T) {
	t.Setenv("LEARNING_RATE", "1.5")
	t.Setenv("NEARBY_LIMIT", "0")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected validation errors")
	}
}
