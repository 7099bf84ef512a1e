package redis

import (
	"testing"
	"time"

	"tokenpublisher/modules/db"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T, opts ...RedisKVOption) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return NewRedisKV(client, opts...), mr
}

func TestRedisKV_PutWithExpiration(t *testing.T) {
	kv, mr := newTestKV(t, WithKeyPrefix("revocation"))

	now := time.Unix(1_600_000_000, 0)
	mr.SetTime(now)

	err := kv.Put(t.Context(), "abc", []byte("h.p"), now.Add(time.Hour))
	require.NoError(t, err)

	got, err := mr.Get("revocation:abc")
	require.NoError(t, err)
	assert.Equal(t, "h.p", got)
	assert.Equal(t, time.Hour, mr.TTL("revocation:abc"))

	bs, err := kv.Get(t.Context(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("h.p"), bs)
}

func TestRedisKV_PutWithoutExpiration(t *testing.T) {
	kv, mr := newTestKV(t)

	require.NoError(t, kv.Put(t.Context(), "k", []byte("v"), time.Time{}))

	assert.True(t, mr.Exists("k"))
	assert.Zero(t, mr.TTL("k"))
}

func TestRedisKV_GetMissing(t *testing.T) {
	kv, _ := newTestKV(t)

	_, err := kv.Get(t.Context(), "nope")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestRedisKV_HealthCheck(t *testing.T) {
	kv, mr := newTestKV(t)
	require.NoError(t, kv.HealthCheck(t.Context()))

	mr.SetError("LOADING")
	assert.Error(t, kv.HealthCheck(t.Context()))
}

func TestWithKeyPrefix(t *testing.T) {
	cases := map[string]string{
		"":            "k",
		"  ":          "k",
		"revocation":  "revocation:k",
		"revocation:": "revocation:k",
		" a:b ":       "a:b:k",
	}
	for prefix, want := range cases {
		kv := NewRedisKV(nil, WithKeyPrefix(prefix))
		assert.Equal(t, want, kv.Key("k"), "prefix %q", prefix)
	}
}
