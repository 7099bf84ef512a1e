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

package publisher

import (
	"context"
	"time"

	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/telemetry"
)

type outcomeRecorder struct {
	metrics *telemetry.OutcomeMetrics
}

// NewRecorder reports publisher outcomes through OpenTelemetry metrics.
func NewRecorder(m *telemetry.OutcomeMetrics) domain.Recorder {
	return outcomeRecorder{metrics: m}
}

func (r outcomeRecorder) RecordOutcome(ctx context.Context, sink string, outcome domain.Outcome, elapsed time.Duration) {
	r.metrics.Record(ctx, sink, string(outcome), elapsed)
}
