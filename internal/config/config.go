// Package config loads settings for both binaries: defaults first, then a YAML
// file, then a .env file, then ARENA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/zxckotee/pvp-arena/internal/session"
)

const envConfigPath = "ARENA_CONFIG"

type Config struct {
	LogLevel    string `yaml:"logLevel"`
	Development bool   `yaml:"development"`
	Server      Server `yaml:"server"`
	Client      Client `yaml:"client"`
}

type Server struct {
	Addr           string        `yaml:"addr"`
	JWTSecret      string        `yaml:"jwtSecret"`
	JWTIssuer      string        `yaml:"jwtIssuer"`
	TokenDuration  time.Duration `yaml:"tokenDuration"`
	TickInterval   time.Duration `yaml:"tickInterval"`
	Retention      time.Duration `yaml:"retention"`
	TechniquesFile string        `yaml:"techniquesFile"`
	DevTokens      bool          `yaml:"devTokens"`
	PostgresDSN    string        `yaml:"postgresDsn"`
	RedisAddr      string        `yaml:"redisAddr"`
	RedisPassword  string        `yaml:"redisPassword"`
	RedisDB        int           `yaml:"redisDb"`
}

type Client struct {
	ServiceURL         string        `yaml:"serviceUrl"`
	Token              string        `yaml:"token"`
	UserID             string        `yaml:"userId"`
	BridgeAddr         string        `yaml:"bridgeAddr"`
	MatchPollInterval  time.Duration `yaml:"matchPollInterval"`
	BrowsePollInterval time.Duration `yaml:"browsePollInterval"`
	RequestTimeout     time.Duration `yaml:"requestTimeout"`
	ActionCooldown     time.Duration `yaml:"actionCooldown"`
	JoinRetries        int           `yaml:"joinRetries"`
	JoinBackoff        time.Duration `yaml:"joinBackoff"`
	JoinBackoffFactor  float64       `yaml:"joinBackoffFactor"`
	LogLimit           int           `yaml:"logLimit"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Server: Server{
			Addr:          ":8080",
			JWTIssuer:     "pvp-arena",
			TokenDuration: 24 * time.Hour,
			TickInterval:  time.Second,
			Retention:     2 * time.Minute,
		},
		Client: Client{
			ServiceURL:         "http://localhost:8080",
			BridgeAddr:         "127.0.0.1:8090",
			MatchPollInterval:  time.Second,
			BrowsePollInterval: 5 * time.Second,
			RequestTimeout:     2 * time.Second,
			ActionCooldown:     5 * time.Second,
			JoinRetries:        3,
			JoinBackoff:        500 * time.Millisecond,
			JoinBackoffFactor:  1.5,
			LogLimit:           100,
		},
	}
}

// Load builds the configuration. path may be empty, in which case ARENA_CONFIG
// is consulted. Missing config and .env files are not errors.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfigPath))
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	var err error
	for _, b := range cfg.bindings() {
		raw, ok := os.LookupEnv(b.key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if setErr := b.set(strings.TrimSpace(raw)); setErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", b.key, setErr))
		}
	}
	return cfg, err
}

type binding struct {
	key string
	set func(string) error
}

func (c *Config) bindings() []binding {
	s, cl := &c.Server, &c.Client
	return []binding{
		{"ARENA_LOG_LEVEL", str(&c.LogLevel)},
		{"ARENA_DEV", boolean(&c.Development)},

		{"ARENA_ADDR", str(&s.Addr)},
		{"ARENA_JWT_SECRET", str(&s.JWTSecret)},
		{"ARENA_JWT_ISSUER", str(&s.JWTIssuer)},
		{"ARENA_TOKEN_DURATION", duration(&s.TokenDuration)},
		{"ARENA_TICK_INTERVAL", duration(&s.TickInterval)},
		{"ARENA_RETENTION", duration(&s.Retention)},
		{"ARENA_TECHNIQUES_FILE", str(&s.TechniquesFile)},
		{"ARENA_DEV_TOKENS", boolean(&s.DevTokens)},
		{"ARENA_POSTGRES_DSN", str(&s.PostgresDSN)},
		{"ARENA_REDIS_ADDR", str(&s.RedisAddr)},
		{"ARENA_REDIS_PASSWORD", str(&s.RedisPassword)},
		{"ARENA_REDIS_DB", integer(&s.RedisDB)},

		{"ARENA_SERVICE_URL", str(&cl.ServiceURL)},
		{"ARENA_TOKEN", str(&cl.Token)},
		{"ARENA_USER_ID", str(&cl.UserID)},
		{"ARENA_BRIDGE_ADDR", str(&cl.BridgeAddr)},
		{"ARENA_MATCH_POLL", duration(&cl.MatchPollInterval)},
		{"ARENA_BROWSE_POLL", duration(&cl.BrowsePollInterval)},
		{"ARENA_REQUEST_TIMEOUT", duration(&cl.RequestTimeout)},
		{"ARENA_ACTION_COOLDOWN", duration(&cl.ActionCooldown)},
		{"ARENA_JOIN_RETRIES", integer(&cl.JoinRetries)},
		{"ARENA_JOIN_BACKOFF", duration(&cl.JoinBackoff)},
		{"ARENA_JOIN_BACKOFF_FACTOR", float(&cl.JoinBackoffFactor)},
		{"ARENA_LOG_LIMIT", integer(&cl.LogLimit)},
	}
}

func str(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func boolean(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func integer(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func float(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func duration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

// ValidateServer reports every problem with the server settings at once.
func (c Config) ValidateServer() error {
	s := c.Server
	var err error
	if s.Addr == "" {
		err = multierr.Append(err, errors.New("server.addr is required"))
	}
	if s.JWTSecret == "" {
		err = multierr.Append(err, errors.New("server.jwtSecret is required"))
	}
	if s.TickInterval < 0 {
		err = multierr.Append(err, errors.New("server.tickInterval must not be negative"))
	}
	if s.Retention <= 0 {
		err = multierr.Append(err, errors.New("server.retention must be positive"))
	}
	if s.RedisDB < 0 {
		err = multierr.Append(err, errors.New("server.redisDb must not be negative"))
	}
	return err
}

func (c Config) ValidateClient() error {
	cl := c.Client
	var err error
	if u, perr := url.Parse(cl.ServiceURL); perr != nil || (u.Scheme != "http" && u.Scheme != "https") {
		err = multierr.Append(err, fmt.Errorf("client.serviceUrl %q is not an http(s) url", cl.ServiceURL))
	}
	if cl.Token == "" {
		err = multierr.Append(err, errors.New("client.token is required"))
	}
	if cl.UserID == "" {
		err = multierr.Append(err, errors.New("client.userId is required"))
	}
	for name, d := range map[string]time.Duration{
		"matchPollInterval":  cl.MatchPollInterval,
		"browsePollInterval": cl.BrowsePollInterval,
		"requestTimeout":     cl.RequestTimeout,
		"actionCooldown":     cl.ActionCooldown,
		"joinBackoff":        cl.JoinBackoff,
	} {
		if d <= 0 {
			err = multierr.Append(err, fmt.Errorf("client.%s must be positive", name))
		}
	}
	if cl.JoinRetries < 0 {
		err = multierr.Append(err, errors.New("client.joinRetries must not be negative"))
	}
	if cl.JoinBackoffFactor < 1 {
		err = multierr.Append(err, errors.New("client.joinBackoffFactor must be at least 1"))
	}
	return err
}

func (c Client) Session() session.Config {
	return session.Config{
		UserID:             c.UserID,
		MatchPollInterval:  c.MatchPollInterval,
		BrowsePollInterval: c.BrowsePollInterval,
		RequestTimeout:     c.RequestTimeout,
		ActionCooldown:     c.ActionCooldown,
		JoinRetries:        c.JoinRetries,
		JoinBackoff:        c.JoinBackoff,
		JoinBackoffFactor:  c.JoinBackoffFactor,
		LogLimit:           c.LogLimit,
	}
}
