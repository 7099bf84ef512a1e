package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tokenpublisher/modules/middleware/problem"
	rl "tokenpublisher/modules/ratelimit"
)

type (
	// Config limits requests per caller. A zero Limit disables limiting.
	Config struct {
		Limit  int64         `env:"LIMIT" envDefault:"0"`
		Window time.Duration `env:"WINDOW" envDefault:"1m"`

		// Store is "memory" for a per-process counter or "redis" to share the
		// budget across replicas.
		Store string `env:"STORE" envDefault:"memory"`

		// TrustForwardedFor keys callers by the last X-Forwarded-For hop.
		// Only enable it behind a proxy that sets the header.
		TrustForwardedFor bool `env:"TRUST_FORWARDED_FOR"`
	}

	KeyFunc func(*http.Request) rl.Key

	// MatchFunc selects the requests that count against the limit.
	MatchFunc func(*http.Request) bool
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

func (c Config) Enabled() bool { return c.Limit > 0 && c.Window > 0 }

// KeyFunc returns the caller identity strategy described by the config.
func (c Config) KeyFunc() KeyFunc {
	if c.TrustForwardedFor {
		return ForwardedForKeyFunc
	}
	return RemoteIPKeyFunc
}

// New limits matching requests with limiter, keyed by keyFn. Requests without
// a key are rejected. A failing counter store yields a 500.
func New(limiter rl.RateLimiter, keyFn KeyFunc, match MatchFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if match != nil && !match(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFn(r)
			if key == "" {
				slog.WarnContext(r.Context(), "no rate limit key",
					slog.String("middleware", "rate_limiter"),
					slog.String("url", r.URL.Path),
				)
				problem.Write(w, problem.TooManyRequests("caller cannot be identified"))
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.ErrorContext(r.Context(), "rate limit error",
					slog.Any("error", err),
					slog.String("url", r.URL.Path),
				)
				problem.Write(w, problem.Internal(http.StatusText(http.StatusInternalServerError)))
				return
			}

			writeRateLimitHeaders(w, result)

			if !result.Allowed {
				slog.DebugContext(r.Context(), "rate limited",
					slog.String("middleware", "rate_limiter"),
					slog.String("url", r.URL.Path),
					slog.String("key", string(key)),
				)
				w.Header().Set("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Round(time.Second).Seconds()), 10))
				problem.Write(w, problem.TooManyRequests(http.StatusText(http.StatusTooManyRequests)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, result rl.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(int64(result.WindowResetIn.Round(time.Second).Seconds()), 10))
}

// RemoteIPKeyFunc keys callers by the connection's remote address.
func RemoteIPKeyFunc(r *http.Request) rl.Key {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return rl.Key(r.RemoteAddr)
	}
	return rl.Key(host)
}

// ForwardedForKeyFunc keys callers by the hop closest to the trusted proxy,
// falling back to the remote address.
func ForwardedForKeyFunc(r *http.Request) rl.Key {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return RemoteIPKeyFunc(r)
	}
	ips := strings.Split(xff, ",")
	return rl.Key(strings.TrimSpace(ips[len(ips)-1]))
}
