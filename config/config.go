package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

const (
	AuthJWKS        = "jwks"
	AuthHS256       = "hs256"
	AuthPassthrough = "passthrough"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`

	TasksAPI struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"tasks_api"`

	Redis struct {
		ConnectionString string        `yaml:"connection_string"`
		DeduperTTL       time.Duration `yaml:"deduper_ttl"`
		TasksCacheTTL    time.Duration `yaml:"tasks_cache_ttl"`
	} `yaml:"redis"`

	Auth struct {
		Mode         string `yaml:"mode"`
		Domain       string `yaml:"domain"`
		Audience     string `yaml:"audience"`
		SharedSecret string `yaml:"shared_secret"`
	} `yaml:"auth"`

	Sync struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"sync"`

	Sessions struct {
		IdleTTL time.Duration `yaml:"idle_ttl"`
	} `yaml:"sessions"`
}

// Default returns the configuration used when neither file nor env set a value.
func Default() *Config {
	cfg := &Config{Port: "8080"}
	cfg.TasksAPI.Timeout = 10 * time.Second
	cfg.Redis.DeduperTTL = 24 * time.Hour
	cfg.Redis.TasksCacheTTL = 30 * time.Second
	cfg.Auth.Mode = AuthJWKS
	cfg.Sync.Concurrency = 4
	cfg.Sessions.IdleTTL = 30 * time.Minute
	return cfg
}

// Load reads the optional YAML file at path, applies env overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
		}
		*dst = d
		return nil
	}

	if v, ok := os.LookupEnv("DEBUG"); ok {
		if dbg, err := strconv.ParseBool(v); err == nil {
			c.Debug = dbg
		}
	}
	setString("FUNCTIONS_CUSTOMHANDLER_PORT", &c.Port)
	setString("TASKS_API_URL", &c.TasksAPI.URL)
	setString("REDIS_CONNECTION_STRING", &c.Redis.ConnectionString)
	setString("AUTH0_DOMAIN", &c.Auth.Domain)
	setString("AUTH0_AUDIENCE", &c.Auth.Audience)
	setString("LOCAL_AUTH_MODE", &c.Auth.Mode)
	setString("LOCAL_AUTH_SHARED_SECRET", &c.Auth.SharedSecret)

	for key, dst := range map[string]*time.Duration{
		"TASKS_API_TIMEOUT": &c.TasksAPI.Timeout,
		"DEDUPER_TTL":       &c.Redis.DeduperTTL,
		"TASKS_CACHE_TTL":   &c.Redis.TasksCacheTTL,
		"SESSION_IDLE_TTL":  &c.Sessions.IdleTTL,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv("SYNC_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: SYNC_CONCURRENCY must be a positive integer", ErrInvalid)
		}
		c.Sync.Concurrency = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.TasksAPI.URL == "" {
		return fmt.Errorf("%w: missing tasks api url", ErrInvalid)
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("%w: sync concurrency must be greater than zero", ErrInvalid)
	}
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	switch c.Auth.Mode {
	case AuthJWKS:
		if c.Auth.Domain == "" || c.Auth.Audience == "" {
			return fmt.Errorf("%w: missing Auth0 config", ErrInvalid)
		}
	case AuthHS256:
		if c.Auth.SharedSecret == "" {
			return fmt.Errorf("%w: hs256 auth requires a shared secret", ErrInvalid)
		}
	case AuthPassthrough:
	default:
		return fmt.Errorf("%w: unknown auth mode %q", ErrInvalid, c.Auth.Mode)
	}
	return nil
}

// JWKSURL is the key set location of the configured Auth0 tenant.
func (c *Config) JWKSURL() string {
	return fmt.Sprintf("https://%s/.well-known/jwks.json", c.Auth.Domain)
}

// Issuer is the expected token issuer for the configured Auth0 tenant.
func (c *Config) Issuer() string {
	return "https://" + c.Auth.Domain + "/"
}

// RedisOptions parses a redis:// URL or the Azure
// "host:port,password=...,ssl=true" connection string form.
func RedisOptions(conn string) (*redis.Options, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, fmt.Errorf("%w: empty redis connection string", ErrInvalid)
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.Contains(parts[0], "=") || strings.Contains(parts[0], "://") {
		return nil, fmt.Errorf("%w: redis connection string has no address", ErrInvalid)
	}
	opts := &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}
