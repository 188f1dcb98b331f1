package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Token string `yaml:"token"`

	// TokenType prefixes the token in REST requests ("Bot" or "Bearer").
	// User tokens leave it empty.
	TokenType string `yaml:"token_type"`

	// GatewayURL is looked up over REST when empty.
	GatewayURL string `yaml:"gateway_url"`
	APIURL     string `yaml:"api_url"`

	// ChannelID receives presence reports and prompt input.
	ChannelID string `yaml:"channel_id"`

	// Compress asks the gateway for zlib-compressed frames.
	Compress bool `yaml:"compress"`

	InboundCapacity int `yaml:"inbound_capacity"`
	DisplayBuffer   int `yaml:"display_buffer"`

	IdentifyDelay    time.Duration `yaml:"-"`
	HandshakeTimeout time.Duration `yaml:"-"`
	HTTPTimeout      time.Duration `yaml:"-"`

	IdentifyDelayRaw    string `yaml:"identify_delay"`
	HandshakeTimeoutRaw string `yaml:"handshake_timeout"`
	HTTPTimeoutRaw      string `yaml:"http_timeout"`

	Logging LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text or color
}

// Load builds the configuration in layers: variables from envFile are added
// to the environment (a missing file is fine), the YAML file at yamlPath is
// read with ${VAR} expansion when yamlPath is set, then the DISCORD_* and
// LOG_* variables override it. Defaults fill what is left.
func Load(envFile, yamlPath string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	var cfg Config
	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnv(cfg *Config) error {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"DISCORD_TOKEN", &cfg.Token},
		{"DISCORD_TOKEN_TYPE", &cfg.TokenType},
		{"DISCORD_GATEWAY_URL", &cfg.GatewayURL},
		{"DISCORD_API_URL", &cfg.APIURL},
		{"DISCORD_CHANNEL_ID", &cfg.ChannelID},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"LOG_FORMAT", &cfg.Logging.Format},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			*o.dst = v
		}
	}

	if v := os.Getenv("DISCORD_INBOUND_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DISCORD_INBOUND_CAPACITY: %w", err)
		}
		cfg.InboundCapacity = n
	}
	if v := os.Getenv("DISCORD_COMPRESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DISCORD_COMPRESS: %w", err)
		}
		cfg.Compress = b
	}
	return nil
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"identify_delay", cfg.IdentifyDelayRaw, &cfg.IdentifyDelay},
		{"handshake_timeout", cfg.HandshakeTimeoutRaw, &cfg.HandshakeTimeout},
		{"http_timeout", cfg.HTTPTimeoutRaw, &cfg.HTTPTimeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.key, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.InboundCapacity == 0 {
		cfg.InboundCapacity = 32
	}
	if cfg.DisplayBuffer == 0 {
		cfg.DisplayBuffer = 64
	}
	if cfg.IdentifyDelay == 0 {
		cfg.IdentifyDelay = time.Second
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "color"
	}
}

// Validate returns the first problem found.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required (set DISCORD_TOKEN)")
	}
	switch c.TokenType {
	case "", "Bot", "Bearer":
	default:
		return fmt.Errorf("token_type must be empty, Bot or Bearer, got %q", c.TokenType)
	}
	if c.InboundCapacity < 0 {
		return fmt.Errorf("inbound_capacity must be positive, got %d", c.InboundCapacity)
	}
	if c.DisplayBuffer < 0 {
		return fmt.Errorf("display_buffer must be positive, got %d", c.DisplayBuffer)
	}
	if c.IdentifyDelay < 0 || c.HandshakeTimeout < 0 || c.HTTPTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	switch c.Logging.Format {
	case "json", "text", "color":
	default:
		return fmt.Errorf("logging.format must be json, text or color, got %q", c.Logging.Format)
	}
	return nil
}
