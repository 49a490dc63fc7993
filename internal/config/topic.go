package config

// Throttling bounds how many messages a topic's consumer accepts per
// interval: at most Limit messages every Interval milliseconds.
type Throttling struct {
	Limit    int `koanf:"limit"`
	Interval int `koanf:"interval_ms"`
}

// Topic is one routing entry: a subscribed topic plus the capabilities its
// consumer opts into, including virtual partitions, DLQ dispatch and
// throttling/expiring/delaying.
type Topic struct {
	Name         string `koanf:"name"`
	Consumer     string `koanf:"consumer"` // name registered via executor.Register
	Deserializer string `koanf:"deserializer"`

	Manual bool `koanf:"manual_offset_management"`

	VirtualPartitions   bool `koanf:"virtual_partitions"`
	VirtualPartitionsMax int `koanf:"virtual_partitions_max"`

	LongRunningJob bool `koanf:"long_running_job"`

	DLQTopic       string `koanf:"dlq_topic"`
	DLQMaxRetries  int    `koanf:"dlq_max_retries"`
	DLQIndependent bool   `koanf:"dlq_independent"`

	Throttling Throttling `koanf:"throttling"`

	Expiring     bool `koanf:"expiring"`
	ExpiringTTL  int  `koanf:"expiring_ttl_ms"`
	Delaying     bool `koanf:"delaying"`
	DelayBy      int  `koanf:"delay_by_ms"`
}

// SubscriptionGroup bundles the Topic descriptors that share one consumer
// instance and driver connection.
type SubscriptionGroup struct {
	ID          string         `koanf:"id"`
	Topics      []Topic        `koanf:"topics"`
	Kafka       map[string]any `koanf:"kafka"`
	MaxWaitTime int            `koanf:"max_wait_time"`
	MaxMessages int            `koanf:"max_messages"`
}

// TopicByName returns the Topic descriptor named name, if any.
func (g SubscriptionGroup) TopicByName(name string) (Topic, bool) {
	for _, t := range g.Topics {
		if t.Name == name {
			return t, true
		}
	}
	return Topic{}, false
}
