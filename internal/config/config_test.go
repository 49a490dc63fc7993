package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Concurrency != 5 {
		t.Fatalf("expected default concurrency 5, got %d", cfg.Concurrency)
	}
	if cfg.MaxWaitTime != time.Second {
		t.Fatalf("expected default max_wait_time 1s, got %s", cfg.MaxWaitTime)
	}
	if cfg.ShutdownTimeout <= cfg.MaxWaitTime {
		t.Fatalf("shutdown_timeout must exceed max_wait_time by default")
	}
	if cfg.DriverName != "sarama" {
		t.Fatalf("expected default driver sarama, got %q", cfg.DriverName)
	}
}

func TestValidate_ShutdownTimeoutTooSmall(t *testing.T) {
	cfg := RuntimeConfig{
		Concurrency:     1,
		MaxWaitTime:     time.Second,
		PauseTimeout:    time.Second,
		PauseMaxTimeout: time.Second,
		ShutdownTimeout: time.Second,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when shutdown_timeout == max_wait_time")
	}
}

func TestValidate_PauseMaxBelowPause(t *testing.T) {
	cfg := RuntimeConfig{
		Concurrency:     1,
		MaxWaitTime:     time.Second,
		PauseTimeout:    2 * time.Second,
		PauseMaxTimeout: time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when pause_max_timeout < pause_timeout")
	}
}

func TestDecodeKafka(t *testing.T) {
	cfg := RuntimeConfig{
		Kafka: map[string]any{
			"brokers":  []string{"localhost:9092"},
			"group_id": "orders-cg",
			"version":  "3.6.0",
		},
	}
	var dst struct {
		Brokers []string `koanf:"brokers"`
		GroupID string   `koanf:"group_id"`
		Version string   `koanf:"version"`
	}
	if err := cfg.DecodeKafka(&dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.GroupID != "orders-cg" || len(dst.Brokers) != 1 {
		t.Fatalf("unexpected decode result: %+v", dst)
	}
}

func TestSubscriptionGroup_TopicByName(t *testing.T) {
	g := SubscriptionGroup{Topics: []Topic{{Name: "orders"}, {Name: "payments"}}}
	if _, ok := g.TopicByName("missing"); ok {
		t.Fatal("expected not found")
	}
	tp, ok := g.TopicByName("payments")
	if !ok || tp.Name != "payments" {
		t.Fatalf("unexpected lookup result: %+v", tp)
	}
}
