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

// Package ratelimit implements time-window rate limits over a shared counter
// store, so every replica of the publisher enforces the same budget.
package ratelimit

import (
	"context"
	"time"
)

type (
	LimiterFactory func(limit int64, window time.Duration) RateLimiter

	// RateLimiter enforces time-based rate limits, e.g. "100 requests per 60 seconds".
	RateLimiter interface {
		// Allow determines if the outcome for the provided Key will be allowed or rate-limited.
		Allow(ctx context.Context, key Key) (Result, error)
	}

	// Key identifies the caller being limited, e.g. the issuer's remote address.
	Key string

	// Result represents the outcome of a rate limit decision.
	Result struct {
		Allowed       bool
		Remaining     int64         // how many requests left in current window
		RetryAfter    time.Duration // if not allowed, when client may retry
		Limit         int64         // max allowed in window
		Window        time.Duration // configured window size
		WindowResetIn time.Duration // time until current window ends
	}

	CounterStore interface {
		// Incr increments a counter at key and returns the new value.
		// TTL tells the store how long to keep the key alive (at least).
		Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

		// Get returns the current value of a counter, or 0 if missing.
		Get(ctx context.Context, key string) (int64, error)
	}
)
