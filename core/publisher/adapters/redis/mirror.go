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

	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/db"
)

var _ domain.KVWriter = (*Mirror)(nil)

// Mirror copies revocation records into a local KV store so edge nodes can
// read them without going through Workers KV. Keys and expirations match the
// Cloudflare records exactly.
type Mirror struct {
	kv db.KV
}

func NewMirror(kv db.KV) (*Mirror, error) {
	if kv == nil {
		return nil, fmt.Errorf("%w: redis mirror: kv store is required", domain.ErrConfiguration)
	}
	return &Mirror{kv: kv}, nil
}

func (m *Mirror) Name() string { return "redis" }

func (m *Mirror) Put(ctx context.Context, record domain.DerivedRecord) error {
	if err := m.kv.Put(ctx, record.LookupKey, []byte(record.StoredValue), record.Expiration); err != nil {
		return &domain.RemoteWriteError{Err: err}
	}
	return nil
}
