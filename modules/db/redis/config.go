package redis

import "time"

// RedisConfig contains configuration for constructing a rueidis.Client.
//
// URL is a standard Redis URI, for example:
//
//   - Single:  redis://:password@localhost:6379/0
//   - TLS:     rediss://:password@my-redis.example.com:6379/0
//   - Cluster: redis://:password@host1:6379/0?addr=host2:6379&addr=host3:6379
type RedisConfig struct {
	// Mirror turns on the Redis copy of every revocation record.
	Mirror bool `env:"MIRROR_ENABLED"`

	// MirrorPrefix scopes mirrored keys, e.g. "revocation:" + key.
	MirrorPrefix string `env:"MIRROR_PREFIX" envDefault:"revocation:"`

	URL string `env:"URL" envDefault:"redis://localhost:6379/0"`

	// Optional: client name visible in CLIENT LIST, etc.
	ClientName string `env:"CLIENT_NAME" envDefault:"token-publisher"`

	// SkipTLSVerify disables TLS certificate verification. Only use this in trusted
	// environments.
	SkipTLSVerify bool `env:"SKIP_TLS_VERIFY"`

	// RequireTLS enforces the use of rediss://.
	RequireTLS bool `env:"REQUIRE_TLS"`

	// The publisher only writes, so client side caching is off unless asked for.
	DisableCache     bool          `env:"DISABLE_CACHE" envDefault:"true"`
	DisableRetry     bool          `env:"DISABLE_RETRY"`
	ConnWriteTimeout time.Duration `env:"CONN_WRITE_TIMEOUT"`

	// Enable OpenTelemetry integration via rueidisotel.
	EnableOtel bool `env:"ENABLE_OTEL"`
}
