// Package config loads the process-wide runtime configuration: concurrency,
// poll/pause/shutdown timeouts and the driver's own config sub-map. The
// loading pattern layers a YAML file with environment-variable overrides,
// merged through koanf, into the app-wide RuntimeConfig plus a per-driver
// sub-map decoded separately via mapstructure so kafkadriver stays
// decoupled from koanf.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// RuntimeConfig is the configuration surface consumed by the core.
type RuntimeConfig struct {
	Concurrency int `koanf:"concurrency"`

	MaxWaitTime    time.Duration `koanf:"max_wait_time"`
	PauseTimeout   time.Duration `koanf:"pause_timeout"`
	PauseMaxTimeout time.Duration `koanf:"pause_max_timeout"`
	PauseWithExponentialBackoff bool `koanf:"pause_with_exponential_backoff"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	ConsumerPersistence bool   `koanf:"consumer_persistence"`
	ClientID            string `koanf:"client_id"`

	DriverName string         `koanf:"driver"`
	Kafka      map[string]any `koanf:"kafka"`

	Internal InternalConfig `koanf:"internal"`
}

// InternalConfig names the pluggable-component classes under
// "internal.processing.*". Only Scheduler is resolved, through
// scheduler.New (the same registry pattern kafkadriver.Register/New use);
// an unknown or empty name keeps the FIFO default. JobsBuilder,
// CoordinatorClass and PartitionerClass are loaded but not used.
type InternalConfig struct {
	Processing struct {
		JobsBuilder      string `koanf:"jobs_builder"`
		Scheduler        string `koanf:"scheduler"`
		CoordinatorClass string `koanf:"coordinator_class"`
		PartitionerClass string `koanf:"partitioner_class"`
	} `koanf:"processing"`
}

// EnvPrefix is the environment-variable namespace RuntimeConfig values are
// read from.
const EnvPrefix = "KARAFKA__"

// Load merges YAML (if path is non-empty and the file exists) with
// KARAFKA__-prefixed environment variables, then applies defaults.
func Load(path string) (RuntimeConfig, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return RuntimeConfig{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", nil), nil); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: load env: %w", err)
	}

	var cfg RuntimeConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

func applyDefaults(c *RuntimeConfig) {
	if c.Concurrency == 0 {
		c.Concurrency = 5
	}
	if c.MaxWaitTime == 0 {
		c.MaxWaitTime = time.Second
	}
	if c.PauseTimeout == 0 {
		c.PauseTimeout = time.Second
	}
	if c.PauseMaxTimeout == 0 {
		c.PauseMaxTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 60 * time.Second
	}
	if c.ClientID == "" {
		c.ClientID = "karafka"
	}
	if c.DriverName == "" {
		c.DriverName = "sarama"
	}
}

// Validate enforces the configuration surface's cross-field invariants.
func (c RuntimeConfig) Validate() error {
	if c.Concurrency <= 0 {
		return errors.New("config: concurrency must be > 0")
	}
	if c.MaxWaitTime <= 0 {
		return errors.New("config: max_wait_time must be > 0")
	}
	if c.PauseTimeout <= 0 {
		return errors.New("config: pause_timeout must be > 0")
	}
	if c.PauseMaxTimeout < c.PauseTimeout {
		return errors.New("config: pause_max_timeout must be >= pause_timeout")
	}
	if c.ShutdownTimeout <= c.MaxWaitTime {
		return errors.New("config: shutdown_timeout must be > max_wait_time")
	}
	return nil
}

// DecodeKafka decodes the driver's raw config sub-map into dst, a
// driver-specific struct such as kafkadriver.Config. Kept separate from
// koanf's own Unmarshal so kafkadriver never imports koanf directly.
func (c RuntimeConfig) DecodeKafka(dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "koanf",
		WeaklyTypedInput: true,
		Result:           dst,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("config: build decoder: %w", err)
	}
	return dec.Decode(c.Kafka)
}
