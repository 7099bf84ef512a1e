// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tokenpublisher/modules/db"

	"github.com/redis/rueidis"
)

var (
	_ db.KV            = (*RedisKV)(nil)
	_ db.HealthManager = (*RedisKV)(nil)
)

// RedisKV is a rueidis-backed implementation of db.KV.
//
// Expiring writes use SET ... EXAT so the key dies at the same absolute
// instant as the record it mirrors.
type RedisKV struct {
	client rueidis.Client

	// prefix is optional and always ends with ":" when non-empty.
	prefix string
}

// RedisKVOption configures RedisKV.
type RedisKVOption func(*RedisKV)

// WithKeyPrefix scopes all keys under a prefix.
// Example: WithKeyPrefix("revocation") stores "abc" as "revocation:abc".
func WithKeyPrefix(prefix string) RedisKVOption {
	return func(k *RedisKV) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" && !strings.HasSuffix(prefix, ":") {
			prefix += ":"
		}
		k.prefix = prefix
	}
}

// NewRedisKV constructs a RedisKV on top of an existing rueidis.Client.
//
// The same client can be shared across multiple RedisKV instances (different prefixes).
func NewRedisKV(client rueidis.Client, opts ...RedisKVOption) *RedisKV {
	kv := &RedisKV{
		client: client,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(kv)
		}
	}
	return kv
}

// Key returns the namespaced key raw is stored under.
func (k *RedisKV) Key(raw string) string {
	if k.prefix == "" {
		return raw
	}
	return k.prefix + raw
}

// Put implements db.KV.Put.
func (k *RedisKV) Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	set := k.client.B().Set().Key(k.Key(key)).Value(rueidis.BinaryString(value))

	var cmd rueidis.Completed
	if expiresAt.IsZero() {
		cmd = set.Build()
	} else {
		cmd = set.ExatTimestamp(expiresAt.Unix()).Build()
	}

	if err := k.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis kv: put %q failed: %w", key, err)
	}
	return nil
}

// Get implements db.KV.Get.
func (k *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	bs, err := k.client.Do(ctx, k.client.B().Get().Key(k.Key(key)).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("redis kv: get %q failed: %w", key, err)
	}
	return bs, nil
}

// HealthCheck is a small helper to be used by readiness/liveness probes.
func (k *RedisKV) HealthCheck(ctx context.Context) error {
	return k.client.Do(ctx, k.client.B().Ping().Build()).Error()
}
