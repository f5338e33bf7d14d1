package kafka_config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != DefaultKafkaBrokers {
		t.Errorf("unexpected brokers: %v", cfg.Brokers)
	}
}

func TestLoad_TrimsBrokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " a:9092, ,b:9092 ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" {
		t.Errorf("unexpected brokers: %#v", cfg.Brokers)
	}
}

func TestLoad_InvalidCompression(t *testing.T) {
	t.Setenv(EnvKafkaProducerCompression, "brotli")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "ProducerCompression") {
		t.Fatalf("expected compression error, got %v", err)
	}
}

func TestGroupID(t *testing.T) {
	cfg := &Config{ConsumerGroupPrefix: "medislot"}
	if got := cfg.GroupID("relay"); got != "medislot.relay" {
		t.Errorf("GroupID = %q", got)
	}
	cfg.ConsumerGroupPrefix = ""
	if got := cfg.GroupID("relay"); got != "relay" {
		t.Errorf("GroupID = %q", got)
	}
}
