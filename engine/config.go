package engine

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support human-readable YAML values,
// adapted from the teacher's services/payoutd/config.go Duration type.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings such as "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// AccountConfig is one entry of the configured signing account pool.
type AccountConfig struct {
	Address       string `yaml:"address"`
	SigningKeyHex string `yaml:"signing_key_hex"`
	SigningKeyEnv string `yaml:"signing_key_env"`
	InitialNonce  uint64 `yaml:"initial_nonce"`
}

// Config captures the runtime configuration recognised by the engine and
// its process entrypoint (§6 Configuration).
type Config struct {
	NodeURL           string          `yaml:"node_url"`
	Accounts          []AccountConfig `yaml:"accounts"`
	MaxRetries        int             `yaml:"max_retries"`
	TickInterval      Duration        `yaml:"tick_interval"`
	RetryInterval     Duration        `yaml:"retry_interval"`
	ReconcileInterval Duration        `yaml:"reconcile_interval"`
	ListenAddress     string          `yaml:"listen_address"`
	Log               LogConfig       `yaml:"log"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Env string `yaml:"env"`
}

// Normalize fills in defaults for unset fields, matching the spec's
// `max_retries: integer = 5` default and sane loop cadences.
func (c *Config) Normalize() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.TickInterval.Duration <= 0 {
		c.TickInterval.Duration = 500 * time.Millisecond
	}
	if c.RetryInterval.Duration <= 0 {
		c.RetryInterval.Duration = 5 * time.Second
	}
	if c.ReconcileInterval.Duration <= 0 {
		c.ReconcileInterval.Duration = time.Minute
	}
}

// LoadConfigBytes parses YAML configuration data and fills in defaults.
func LoadConfigBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}
