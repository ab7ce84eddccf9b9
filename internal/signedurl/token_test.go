package signedurl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("test-secret")

	token := signer.Issue("abc", time.Now().Add(time.Minute))
	require.NoError(t, signer.Verify(token.FileID, token.ExpiresAt, token.Signature))
}

func TestSignerExpired(t *testing.T) {
	signer := NewSigner("test-secret")

	token := signer.Issue("abc", time.Now().Add(-time.Second))
	err := signer.Verify(token.FileID, token.ExpiresAt, token.Signature)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSignerTamperedSignature(t *testing.T) {
	signer := NewSigner("test-secret")
	token := signer.Issue("abc", time.Now().Add(time.Minute))

	// Flip one bit of the first signature byte.
	raw := []byte(token.Signature)
	raw[0] ^= 0x01
	err := signer.Verify(token.FileID, token.ExpiresAt, string(raw))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignerTamperedExpiry(t *testing.T) {
	signer := NewSigner("test-secret")
	token := signer.Issue("abc", time.Now().Add(-time.Second))

	// Pushing the expiry forward without re-signing must read as forged, not
	// expired.
	err := signer.Verify(token.FileID, time.Now().Add(time.Hour).UnixMilli(), token.Signature)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignerWrongFileID(t *testing.T) {
	signer := NewSigner("test-secret")
	token := signer.Issue("abc", time.Now().Add(time.Minute))

	err := signer.Verify("other", token.ExpiresAt, token.Signature)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignerDifferentSecrets(t *testing.T) {
	token := NewSigner("secret-a").Issue("abc", time.Now().Add(time.Minute))

	err := NewSigner("secret-b").Verify(token.FileID, token.ExpiresAt, token.Signature)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenValues(t *testing.T) {
	signer := NewSigner("test-secret")
	token := signer.Issue("abc", time.UnixMilli(1700000000000))

	values := token.Values()
	assert.Equal(t, "1700000000000", values.Get("expires"))
	assert.Equal(t, token.Signature, values.Get("signature"))
}
