package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "canopy.yaml"

// EnvPrefix prefixes every environment override, e.g. CANOPY_LOG_LEVEL.
const EnvPrefix = "CANOPY_"

// Config is the runtime configuration of the canopy CLI and servers.
type Config struct {
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Redis   RedisConfig   `yaml:"redis" mapstructure:"redis"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Trail   TrailConfig   `yaml:"trail" mapstructure:"trail"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// RedisConfig configures the redis trail sink. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	Prefix   string        `yaml:"prefix" mapstructure:"prefix"`
	MaxLen   int           `yaml:"max_len" mapstructure:"max_len"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// TrailConfig bounds the in-process event trail and protects what it records.
type TrailConfig struct {
	Buffer int `yaml:"buffer" mapstructure:"buffer"`
	MaxLen int `yaml:"max_len" mapstructure:"max_len"`

	// Redact lists regular expressions; matching JSON keys are masked.
	Redact []string `yaml:"redact" mapstructure:"redact"`
	// EncryptionKey is a base64 AES-256 key sealing every trail entry.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
}

// Key decodes EncryptionKey, returning nil when encryption is off.
func (t TrailConfig) Key() ([]byte, error) {
	if t.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(t.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("trail.encryption_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("trail.encryption_key: must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Log:     LogConfig{Level: "info", Format: "text"},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Redis:   RedisConfig{Prefix: "canopy:", MaxLen: 1000},
		Metrics: MetricsConfig{Namespace: "canopy"},
		Trail:   TrailConfig{Buffer: 256, MaxLen: 1000},
	}
}

// keys lists every setting that can be overridden from the environment.
var keys = []string{
	"log.level",
	"log.format",
	"http.addr",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.prefix",
	"redis.max_len",
	"redis.ttl",
	"metrics.namespace",
	"trail.buffer",
	"trail.max_len",
	"trail.redact",
	"trail.encryption_key",
}

// EnvName returns the environment variable for a dotted key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load builds a Config from defaults, the YAML file at path (a missing file is
// not an error) and CANOPY_* environment variables, in that order.
func Load(path string) (Config, error) {
	raw := map[string]any{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// No file: defaults and environment only.
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	for _, key := range keys {
		if val, ok := os.LookupEnv(EnvName(key)); ok {
			set(raw, key, val)
		}
	}

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(raw map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// set stores val under a dotted key, creating intermediate maps.
func set(raw map[string]any, key, val string) {
	parts := strings.Split(key, ".")
	cur := raw
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = val
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db: must not be negative, got %d", c.Redis.DB)
	}
	if c.Redis.MaxLen <= 0 {
		return fmt.Errorf("redis.max_len: must be positive, got %d", c.Redis.MaxLen)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("redis.ttl: must not be negative, got %s", c.Redis.TTL)
	}
	if c.Trail.Buffer <= 0 || c.Trail.MaxLen <= 0 {
		return fmt.Errorf("trail: buffer and max_len must be positive")
	}
	for _, p := range c.Trail.Redact {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("trail.redact: %w", err)
		}
	}
	if _, err := c.Trail.Key(); err != nil {
		return err
	}
	return nil
}
