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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tokenpublisher/modules/clock"
)

// MinExpirationTTL is the shortest expiration Workers KV accepts. Records
// closer to expiry than this are still sent, but a warning is logged.
const MinExpirationTTL = 60 * time.Second

// Publisher runs the extract -> derive -> write pipeline for one event at a
// time. It keeps no state between events and may be called concurrently.
type Publisher struct {
	deriver  Deriver
	writers  []KVWriter
	clock    clock.Clock
	logger   *slog.Logger
	recorder Recorder
}

type Option func(*Publisher)

func WithClock(c clock.Clock) Option {
	return func(p *Publisher) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Publisher) {
		if r != nil {
			p.recorder = r
		}
	}
}

func NewPublisher(deriver Deriver, writers []KVWriter, opts ...Option) (*Publisher, error) {
	if deriver == nil {
		return nil, fmt.Errorf("%w: publisher requires a key deriver", ErrConfiguration)
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("%w: publisher requires at least one kv writer", ErrConfiguration)
	}

	p := &Publisher{
		deriver:  deriver,
		writers:  writers,
		clock:    clock.RealClockProvider(),
		logger:   slog.Default(),
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Handle publishes the revocation record for ev.
//
// A malformed token and a failed remote write are logged and swallowed, so the
// caller's dispatch keeps going. Only environment faults are returned: an
// unavailable digest (ErrDigestUnavailable) or a transport misconfiguration
// (ErrConfiguration).
func (p *Publisher) Handle(ctx context.Context, ev IssuedTokenEvent) error {
	segments, err := ExtractSignature(ev.AccessTokenValue)
	if err != nil {
		p.logger.DebugContext(ctx, "dropping event, the access token cannot be mapped to a revocation key",
			slog.String("event_id", ev.ID),
			slog.Any("error", err),
		)
		p.recorder.RecordOutcome(ctx, "", OutcomeDropped, 0)
		return nil
	}

	if ev.ExpiresAt.IsZero() {
		p.logger.DebugContext(ctx, "dropping event, the access token has no expiration",
			slog.String("event_id", ev.ID),
		)
		p.recorder.RecordOutcome(ctx, "", OutcomeDropped, 0)
		return nil
	}

	key, err := p.deriver.Derive(segments.Signature)
	if err != nil {
		p.logger.WarnContext(ctx, "cannot derive lookup key", slog.String("event_id", ev.ID), slog.Any("error", err))
		p.recorder.RecordOutcome(ctx, "", OutcomeFatal, 0)
		return fmt.Errorf("publisher: derive lookup key: %w", err)
	}

	record := DerivedRecord{
		LookupKey:   key,
		StoredValue: segments.SignedPayload,
		Expiration:  ev.ExpiresAt,
	}

	detail := slog.Group("event",
		append([]any{
			slog.String("id", ev.ID),
			slog.String("key", record.LookupKey),
			slog.Int64("expiration", record.Expiration.Unix()),
		}, tokenAttrs(ev.AccessTokenValue)...)...,
	)

	if ttl := record.Expiration.Sub(p.clock.Now()); ttl < MinExpirationTTL {
		p.logger.WarnContext(ctx, "expiration is closer than the kv store minimum, the write may be rejected",
			slog.Duration("ttl", ttl),
			detail,
		)
	}

	var fatal error
	for _, w := range p.writers {
		start := p.clock.Now()
		err := w.Put(ctx, record)
		elapsed := p.clock.Now().Sub(start)

		var remote *RemoteWriteError
		switch {
		case err == nil:
			p.logger.DebugContext(ctx, "successfully sent event", slog.String("sink", w.Name()), detail)
			p.recorder.RecordOutcome(ctx, w.Name(), OutcomeAcknowledged, elapsed)

		case errors.Is(err, ErrConfiguration):
			p.logger.ErrorContext(ctx, "kv writer is misconfigured", slog.String("sink", w.Name()), slog.Any("error", err))
			p.recorder.RecordOutcome(ctx, w.Name(), OutcomeFatal, elapsed)
			fatal = errors.Join(fatal, fmt.Errorf("publisher: %s: %w", w.Name(), err))

		case errors.As(err, &remote):
			p.logger.WarnContext(ctx, "event posted to kv store but response was not successful",
				slog.String("sink", w.Name()),
				slog.Int("status", remote.StatusCode),
				slog.String("body", remote.Body),
				slog.Any("error", err),
				detail,
			)
			p.recorder.RecordOutcome(ctx, w.Name(), OutcomeFailed, elapsed)

		default:
			p.logger.WarnContext(ctx, "event could not be posted to kv store",
				slog.String("sink", w.Name()),
				slog.Any("error", err),
				detail,
			)
			p.recorder.RecordOutcome(ctx, w.Name(), OutcomeFailed, elapsed)
		}
	}

	return fatal
}
