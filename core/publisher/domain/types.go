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

import "time"

// EventTypeIssuedAccessToken names the event an identity issuer emits once an
// access token has been minted.
const EventTypeIssuedAccessToken = "issued-access-token"

type (
	// IssuedTokenEvent is the inbound event. It is never modified after ingress.
	IssuedTokenEvent struct {
		// ID only correlates log lines, it plays no part in the stored record.
		ID string

		// AccessTokenValue is the compact serialized token: header.payload.signature
		AccessTokenValue string

		// ExpiresAt is the instant after which the stored mapping is meaningless.
		ExpiresAt time.Time
	}

	// Segments is the result of splitting a compact token.
	Segments struct {
		SignedPayload string // header "." payload
		Signature     string
	}

	// DerivedRecord is what gets written to a KV backend for a single event.
	DerivedRecord struct {
		LookupKey   string
		StoredValue string
		Expiration  time.Time
	}

	// Outcome is the terminal state reached while handling one event.
	Outcome string
)

const (
	OutcomeAcknowledged Outcome = "acknowledged"
	OutcomeFailed       Outcome = "failed"
	OutcomeDropped      Outcome = "dropped"
	OutcomeFatal        Outcome = "fatal"
)

// Type implements events.Event.
func (e IssuedTokenEvent) Type() string {
	return EventTypeIssuedAccessToken
}
