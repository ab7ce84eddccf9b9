package signedurl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrInvalidSignature means the supplied signature does not match the
	// (fileID, expiry) pair. A forged link always reads as invalid, whatever
	// expiry it claims.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrExpired means the signature was valid but the link is past its
	// expiry. Only a genuinely issued link can surface this.
	ErrExpired = errors.New("access token expired")
)

// Token is a stateless, time-limited capability for fetching one file by its
// opaque identifier. Validity is fully recomputed at verification time.
type Token struct {
	FileID    string
	ExpiresAt int64 // epoch milliseconds
	Signature string
}

// Values renders the token as the query parameters the caller embeds in a
// download URL.
func (t Token) Values() url.Values {
	v := url.Values{}
	v.Set("expires", strconv.FormatInt(t.ExpiresAt, 10))
	v.Set("signature", t.Signature)
	return v
}

type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Issue binds a file identifier to an expiry instant under the server secret.
func (s *Signer) Issue(fileID string, expiry time.Time) Token {
	expires := expiry.UnixMilli()
	return Token{
		FileID:    fileID,
		ExpiresAt: expires,
		Signature: s.sign(fileID, expires),
	}
}

// Verify checks the signature first and only then the expiry, so that a
// tampered link never learns whether its embedded expiry would have passed.
func (s *Signer) Verify(fileID string, expiresMillis int64, signature string) error {
	expected := s.sign(fileID, expiresMillis)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	if time.Now().UnixMilli() > expiresMillis {
		return ErrExpired
	}
	return nil
}

func (s *Signer) sign(fileID string, expiresMillis int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(fileID))
	mac.Write([]byte("\n"))
	mac.Write([]byte(strconv.FormatInt(expiresMillis, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
