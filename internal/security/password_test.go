package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	_, err := VerifyPassword("anything", []byte("not-a-hash"))
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestRefreshTokenHash(t *testing.T) {
	token, hash, err := GenerateRefreshToken(64)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, hash, HashRefreshToken(token))
}
