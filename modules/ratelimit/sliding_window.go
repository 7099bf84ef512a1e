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

package ratelimit

import (
	"context"
	"fmt"
	"math/bits"
	"time"

	"tokenpublisher/modules/clock"
)

var _ RateLimiter = (*SlidingWindowRateLimiter)(nil)

// SlidingWindowRateLimiter approximates a sliding window from two fixed
// windows: the current count plus the previous count weighted by how much of
// the previous window still overlaps the sliding one.
type SlidingWindowRateLimiter struct {
	clock     clock.Clock
	counter   CounterStore
	keyPrefix string

	limit  uint64
	window time.Duration
}

func SlidingWindowFactory(c clock.Clock, counter CounterStore, keyPrefix string) LimiterFactory {
	return func(l int64, w time.Duration) RateLimiter {
		return &SlidingWindowRateLimiter{
			clock:     c,
			counter:   counter,
			keyPrefix: keyPrefix,
			limit:     uint64(max(l, 0)),
			window:    w,
		}
	}
}

func (s *SlidingWindowRateLimiter) Allow(ctx context.Context, key Key) (Result, error) {
	nowNs := s.clock.Now().UnixNano()
	windowNs := s.window.Nanoseconds()
	idx := nowNs / windowNs

	current, err := s.counter.Incr(ctx, s.buildKey(key, idx), s.window*2)
	if err != nil {
		return Result{}, err
	}
	previous, err := s.counter.Get(ctx, s.buildKey(key, idx-1))
	if err != nil {
		return Result{}, err
	}

	elapsedNs := min(max(nowNs-idx*windowNs, 0), windowNs)
	resetIn := max(s.window-time.Duration(elapsedNs), 0)

	used, allowed := s.weighUsage(uint64(max(current, 0)), uint64(max(previous, 0)), uint64(windowNs-elapsedNs))

	result := Result{
		Allowed:       allowed,
		Remaining:     int64(s.limit - min(used, s.limit)),
		Limit:         int64(s.limit),
		Window:        s.window,
		WindowResetIn: resetIn,
	}
	if !allowed {
		result.RetryAfter = resetIn
	}
	return result, nil
}

// weighUsage computes current*window + previous*prevWeight in 128 bits and
// compares it with limit*window, so no precision is lost to floats. used is
// the usage rounded up to whole requests.
func (s *SlidingWindowRateLimiter) weighUsage(current, previous, prevWeightNs uint64) (used uint64, allowed bool) {
	windowNs := uint64(s.window.Nanoseconds())

	curHi, curLo := bits.Mul64(current, windowNs)
	prevHi, prevLo := bits.Mul64(previous, prevWeightNs)
	lo, carry := bits.Add64(curLo, prevLo, 0)
	hi, _ := bits.Add64(curHi, prevHi, carry)

	limitHi, limitLo := bits.Mul64(s.limit, windowNs)
	allowed = hi < limitHi || (hi == limitHi && lo <= limitLo)

	switch {
	case hi == 0:
		used = lo / windowNs
		if lo%windowNs != 0 {
			used++
		}
	case hi < windowNs:
		q, r := bits.Div64(hi, lo, windowNs)
		used = q
		if r != 0 && used != ^uint64(0) {
			used++
		}
	default:
		used = ^uint64(0)
	}
	return used, allowed
}

func (s *SlidingWindowRateLimiter) buildKey(key Key, windowIdx int64) string {
	return fmt.Sprintf("%s:%s:%d", s.keyPrefix, key, windowIdx)
}
