// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidisotel"
)

// NewRueidisClient creates a rueidis.Client from RedisConfig.
//
// It:
//
//   - Parses the redis:// / rediss:// URL
//   - Configures TLS + optional insecure skip verify
//   - Wraps the client with OpenTelemetry (optional)
//   - Performs a PING with a small timeout to fail fast
func NewRueidisClient(ctx context.Context, cfg RedisConfig) (rueidis.Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rueidis: URL must not be empty")
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rueidis: parse url: %w", err)
	}

	if u.Scheme == "redis" {
		if cfg.RequireTLS {
			return nil, errors.New("rueidis: RequireTLS=true but URL uses redis:// (plaintext); use rediss://")
		}
		if cfg.SkipTLSVerify {
			slog.Warn("rueidis: redis:// URL disables TLS even though skip_tls_verify is set",
				slog.String("host", u.Hostname()),
			)
		}
	}

	clientOpt, err := rueidis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	clientOpt.ClientName = cfg.ClientName
	clientOpt.DisableRetry = cfg.DisableRetry
	clientOpt.DisableCache = cfg.DisableCache
	if cfg.ConnWriteTimeout > 0 {
		clientOpt.ConnWriteTimeout = cfg.ConnWriteTimeout
	}

	if cfg.SkipTLSVerify {
		if clientOpt.TLSConfig == nil {
			clientOpt.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		} else {
			tc := clientOpt.TLSConfig.Clone()
			tc.InsecureSkipVerify = true //nolint:gosec
			clientOpt.TLSConfig = tc
		}
	}

	var cli rueidis.Client
	if cfg.EnableOtel {
		cli, err = rueidisotel.NewClient(clientOpt)
	} else {
		cli, err = rueidis.NewClient(clientOpt)
	}
	if err != nil {
		slog.ErrorContext(ctx, "error during rueidis init", slog.Any("error", err))
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := cli.Do(pingCtx, cli.B().Ping().Build()).Error(); err != nil {
		cli.Close()
		return nil, err
	}

	slog.Info("rueidis: connected",
		slog.String("mode", string(cli.Mode())),
		slog.String("client_name", cfg.ClientName),
	)

	return cli, nil
}
