package hmac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACSigner_SignVerify(t *testing.T) {
	s, err := NewHMACSigner([]byte("s3cret"))
	require.NoError(t, err)

	body := []byte(`{"accessTokenValue":"a.b.c","expiresAt":1600000000}`)
	sig := s.Sign(body)

	assert.NotContains(t, sig, "=")
	assert.Equal(t, sig, s.Sign(body))
	assert.NoError(t, s.Verify(body, sig))
}

func TestHMACSigner_VerifyRejects(t *testing.T) {
	s, err := NewHMACSigner([]byte("s3cret"))
	require.NoError(t, err)
	other, err := NewHMACSigner([]byte("other"))
	require.NoError(t, err)

	body := []byte("payload")

	assert.ErrorIs(t, s.Verify(body, ""), ErrMissingSignature)
	assert.ErrorIs(t, s.Verify(body, "!!not-base64!!"), ErrInvalidSignature)
	assert.ErrorIs(t, s.Verify(body, other.Sign(body)), ErrInvalidSignature)
	assert.ErrorIs(t, s.Verify([]byte("tampered"), s.Sign(body)), ErrInvalidSignature)
}

func TestNewHMACSigner_MissingKey(t *testing.T) {
	_, err := NewHMACSigner(nil)
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.False(t, HMACConfig{}.Enabled())
	assert.True(t, HMACConfig{Secret: "x"}.Enabled())
}
