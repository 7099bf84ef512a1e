package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubKV struct {
	key       string
	value     []byte
	expiresAt time.Time
	err       error
}

func (s *stubKV) Put(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.key, s.value, s.expiresAt = key, value, expiresAt
	return nil
}

func (s *stubKV) Get(_ context.Context, key string) ([]byte, error) {
	if key != s.key {
		return nil, db.ErrNotFound
	}
	return s.value, nil
}

func TestMirror_Put(t *testing.T) {
	kv := &stubKV{}
	m, err := NewMirror(kv)
	require.NoError(t, err)
	assert.Equal(t, "redis", m.Name())

	exp := time.Unix(1_700_000_000, 0)
	err = m.Put(t.Context(), domain.DerivedRecord{LookupKey: "k", StoredValue: "h.p", Expiration: exp})
	require.NoError(t, err)

	assert.Equal(t, "k", kv.key)
	assert.Equal(t, []byte("h.p"), kv.value)
	assert.True(t, exp.Equal(kv.expiresAt))
}

func TestMirror_PutFailureIsRemoteWrite(t *testing.T) {
	boom := errors.New("connection refused")
	m, err := NewMirror(&stubKV{err: boom})
	require.NoError(t, err)

	err = m.Put(t.Context(), domain.DerivedRecord{LookupKey: "k", StoredValue: "h.p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteWrite)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewMirror_RequiresKV(t *testing.T) {
	_, err := NewMirror(nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
