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
	"fmt"

	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/events"
)

var _ events.Listener = (*AccessTokenIssuedListener)(nil)

// AccessTokenIssuedListener feeds issued-access-token events into a Publisher.
type AccessTokenIssuedListener struct {
	publisher *domain.Publisher
}

func NewAccessTokenIssuedListener(p *domain.Publisher) *AccessTokenIssuedListener {
	return &AccessTokenIssuedListener{publisher: p}
}

func (l *AccessTokenIssuedListener) EventType() string {
	return domain.EventTypeIssuedAccessToken
}

func (l *AccessTokenIssuedListener) Handle(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case domain.IssuedTokenEvent:
		return l.publisher.Handle(ctx, e)
	case *domain.IssuedTokenEvent:
		return l.publisher.Handle(ctx, *e)
	default:
		return fmt.Errorf("publisher: unexpected event %T for %s", ev, l.EventType())
	}
}
