package appconfig

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"tokenpublisher/core/publisher"
	"tokenpublisher/core/publisher/adapters/cloudflare"
	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/db/redis"
	"tokenpublisher/modules/hmac"
	"tokenpublisher/modules/middleware/ratelimit"
	"tokenpublisher/modules/server"
	"tokenpublisher/modules/telemetry"

	"github.com/caarlos0/env/v11"
)

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type Config struct {
	Log LogConfig `envPrefix:"LOG_"`

	// --- publisher ----
	Cloudflare cloudflare.Config `envPrefix:"CLOUDFLARE_"`
	Publisher  publisher.Config  `envPrefix:"PUBLISHER_"`

	// --- core infra ----
	Redis  redis.RedisConfig `envPrefix:"REDIS_"`
	Server server.Config     `envPrefix:"SERVER_"`

	// --- webhook ----
	HMAC      hmac.HMACConfig  `envPrefix:"WEBHOOK_HMAC_"`
	RateLimit ratelimit.Config `envPrefix:"WEBHOOK_RATE_LIMIT_"`

	// --- otel ----
	// since it has special naming conventions, we do not use prefix here
	Otel telemetry.Config
}

// NeedsRedis reports whether any enabled component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Redis.Mirror || (c.RateLimit.Enabled() && c.RateLimit.Store == ratelimit.StoreRedis)
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadFrom parses the given environment instead of the process one.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environ})
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

func finish(cfg Config) (*Config, error) {
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(c *Config) error {
	var errs []error

	if _, err := domain.NewKeyDeriver(domain.Digest(c.Publisher.Digest), domain.KeyEncoding(c.Publisher.KeyEncoding)); err != nil {
		errs = append(errs, err)
	}
	if c.Publisher.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("PUBLISHER_CONCURRENCY must be positive, got %d", c.Publisher.Concurrency))
	}

	if u, err := url.Parse(c.Cloudflare.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("CLOUDFLARE_API_URL must be an absolute http(s) URL, got %q", c.Cloudflare.APIURL))
	}
	switch strings.ToLower(c.Cloudflare.TransportScheme) {
	case "", "http", "https":
	default:
		errs = append(errs, fmt.Errorf("CLOUDFLARE_TRANSPORT_SCHEME must be http or https, got %q", c.Cloudflare.TransportScheme))
	}
	if c.Cloudflare.RateLimit < 0 {
		errs = append(errs, errors.New("CLOUDFLARE_RATE_LIMIT must not be negative"))
	}

	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format))
	}

	switch c.RateLimit.Store {
	case ratelimit.StoreMemory, ratelimit.StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("WEBHOOK_RATE_LIMIT_STORE must be memory or redis, got %q", c.RateLimit.Store))
	}

	if c.NeedsRedis() {
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when the redis mirror or redis rate limit store is enabled"))
		} else if u, err := url.Parse(c.Redis.URL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss" && u.Scheme != "unix") {
			errs = append(errs, fmt.Errorf("REDIS_URL must be a redis://, rediss:// or unix:// URL, got %q", c.Redis.URL))
		}
	}

	return errors.Join(errs...)
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the process logger described by the config.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := l.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
