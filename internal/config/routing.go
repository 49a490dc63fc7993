package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// routingFile is the on-disk shape of the routing YAML: a flat list of
// subscription groups, each naming the topics it consumes.
type routingFile struct {
	SubscriptionGroups []SubscriptionGroup `koanf:"subscription_groups"`
}

// LoadRouting reads the subscription-group routing table from path,
// mirroring the layered-config approach of Load but for the routing
// definition, which lives in its own file alongside the runtime config
// rather than inside it.
func LoadRouting(path string) ([]SubscriptionGroup, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load routing %s: %w", path, err)
	}

	var rf routingFile
	if err := k.Unmarshal("", &rf); err != nil {
		return nil, fmt.Errorf("config: unmarshal routing: %w", err)
	}
	for i := range rf.SubscriptionGroups {
		if rf.SubscriptionGroups[i].MaxMessages == 0 {
			rf.SubscriptionGroups[i].MaxMessages = 1000
		}
	}
	return rf.SubscriptionGroups, nil
}
