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

package domain

import (
	"context"
	"time"
)

// KVWriter is the port every KV backend implements. Put performs a single,
// idempotent overwrite of the record's key and must not retry.
//
// Errors wrapping ErrConfiguration are fatal for the caller; anything else is
// treated as a recoverable remote failure.
type KVWriter interface {
	Name() string
	Put(ctx context.Context, record DerivedRecord) error
}

// Recorder observes terminal outcomes. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordOutcome(ctx context.Context, sink string, outcome Outcome, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordOutcome(context.Context, string, Outcome, time.Duration) {}
