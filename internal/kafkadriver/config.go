package kafkadriver

import "time"

// Config is the driver-specific slice of the runtime config's "kafka" map:
// already-validated data the core passes through without interpreting
// beyond what the driver itself needs.
type Config struct {
	Brokers   []string `koanf:"brokers"`
	GroupID   string   `koanf:"group_id"`
	Version   string   `koanf:"version"`
	StartFrom string   `koanf:"start_from"` // oldest|newest, default newest

	AssignmentStrategy string `koanf:"assignment_strategy"` // e.g. "cooperative-sticky"

	TLSEnabled bool   `koanf:"tls_enabled"`
	SASLUser   string `koanf:"sasl_user"`
	SASLPass   string `koanf:"sasl_pass"`

	AutoCreateTopics bool `koanf:"auto_create_topics"`

	SessionTimeout    time.Duration `koanf:"session_timeout"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

// CooperativeStickyMaxWait bounds the pre-close rebalance wait of
// Client.Stop.
const CooperativeStickyMaxWait = 60 * time.Second

func (c Config) isCooperativeSticky() bool {
	return c.AssignmentStrategy == "cooperative-sticky"
}
