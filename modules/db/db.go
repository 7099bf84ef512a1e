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

package db

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("db: key not found")

type (
	// KV is a minimal expiring key-value store.
	KV interface {
		// Put overwrites key with value. A zero expiresAt means the value never
		// expires.
		Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error

		// Get returns ErrNotFound if key does not exist.
		Get(ctx context.Context, key string) ([]byte, error)
	}

	HealthManager interface {
		HealthCheck(ctx context.Context) error
	}
)
