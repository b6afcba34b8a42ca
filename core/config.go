package core

import (
	"fmt"
	"strings"
	"time"
)

type RelayConfig struct {
	LockTimeout            time.Duration `koanf:"lock_timeout" mapstructure:"lock_timeout"`
	MaxConcurrentInstances int           `koanf:"max_concurrent_instances" mapstructure:"max_concurrent_instances"`
	MaxRetries             int           `koanf:"max_retries" mapstructure:"max_retries"`
	ClaimBatchSize         int           `koanf:"claim_batch_size" mapstructure:"claim_batch_size"`
	TickInterval           time.Duration `koanf:"tick_interval" mapstructure:"tick_interval"`
}

type Config struct {
	ServiceName string      `koanf:"service_name" mapstructure:"service_name"`
	Relay       RelayConfig `koanf:"relay" mapstructure:"relay"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "relay",
		Relay: RelayConfig{
			LockTimeout:            5 * time.Minute,
			MaxConcurrentInstances: 5,
			MaxRetries:             3,
			ClaimBatchSize:         50,
			TickInterval:           time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Relay.LockTimeout < 0 {
		return fmt.Errorf("core: relay.lock_timeout must be >= 0")
	}
	if c.Relay.MaxConcurrentInstances < 0 {
		return fmt.Errorf("core: relay.max_concurrent_instances must be >= 0")
	}
	if c.Relay.MaxRetries < 0 {
		return fmt.Errorf("core: relay.max_retries must be >= 0")
	}
	if c.Relay.ClaimBatchSize < 0 {
		return fmt.Errorf("core: relay.claim_batch_size must be >= 0")
	}
	if c.Relay.TickInterval < 0 {
		return fmt.Errorf("core: relay.tick_interval must be >= 0")
	}
	return nil
}

// withRelayDefaults fills zero tunables so callers can set only what they
// care about.
func (c RelayConfig) withRelayDefaults() RelayConfig {
	defaults := DefaultConfig().Relay
	out := c
	if out.LockTimeout == 0 {
		out.LockTimeout = defaults.LockTimeout
	}
	if out.MaxConcurrentInstances == 0 {
		out.MaxConcurrentInstances = defaults.MaxConcurrentInstances
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = defaults.MaxRetries
	}
	if out.ClaimBatchSize == 0 {
		out.ClaimBatchSize = defaults.ClaimBatchSize
	}
	if out.TickInterval == 0 {
		out.TickInterval = defaults.TickInterval
	}
	return out
}
