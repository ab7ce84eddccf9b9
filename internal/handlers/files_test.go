package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/gkintu/hukasa-staging-sub001/internal/ratelimit"
	"github.com/gkintu/hukasa-staging-sub001/internal/signedurl"
)

func newSignedFileRouter(signer *signedurl.Signer, limiter ratelimit.Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := HandlerSet{
		log:     zerolog.Nop(),
		signer:  signer,
		limiter: limiter,
	}
	engine := gin.New()
	engine.GET("/api/v1/public/files/:id", h.ServeSignedFile)
	return engine
}

func getSignedFile(t *testing.T, router *gin.Engine, fileID, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/files/"+fileID+"?"+query, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServeSignedFile_MissingParameters(t *testing.T) {
	router := newSignedFileRouter(signedurl.NewSigner("secret"), ratelimit.NewFixedWindow(time.Minute, 100))

	assert.Equal(t, http.StatusBadRequest, getSignedFile(t, router, "f1", "").Code)
	assert.Equal(t, http.StatusBadRequest, getSignedFile(t, router, "f1", "expires=123").Code)
	assert.Equal(t, http.StatusBadRequest, getSignedFile(t, router, "f1", "signature=abc").Code)
}

func TestServeSignedFile_MalformedExpires(t *testing.T) {
	router := newSignedFileRouter(signedurl.NewSigner("secret"), ratelimit.NewFixedWindow(time.Minute, 100))

	rec := getSignedFile(t, router, "f1", "expires=tomorrow&signature=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeSignedFile_InvalidSignature(t *testing.T) {
	signer := signedurl.NewSigner("secret")
	router := newSignedFileRouter(signer, ratelimit.NewFixedWindow(time.Minute, 100))

	token := signer.Issue("f1", time.Now().Add(time.Hour))
	query := "expires=" + strconv.FormatInt(token.ExpiresAt, 10) + "&signature=forged"
	assert.Equal(t, http.StatusForbidden, getSignedFile(t, router, "f1", query).Code)

	// A link signed for one file does not open another.
	assert.Equal(t, http.StatusForbidden, getSignedFile(t, router, "f2", token.Values().Encode()).Code)
}

func TestServeSignedFile_Expired(t *testing.T) {
	signer := signedurl.NewSigner("secret")
	router := newSignedFileRouter(signer, ratelimit.NewFixedWindow(time.Minute, 100))

	token := signer.Issue("f1", time.Now().Add(-time.Minute))
	rec := getSignedFile(t, router, "f1", token.Values().Encode())
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestServeSignedFile_RateLimited(t *testing.T) {
	signer := signedurl.NewSigner("secret")
	router := newSignedFileRouter(signer, ratelimit.NewFixedWindow(time.Minute, 2))

	token := signer.Issue("f1", time.Now().Add(-time.Minute))
	query := token.Values().Encode()

	// The ceiling counts every attempt, valid or not.
	assert.Equal(t, http.StatusGone, getSignedFile(t, router, "f1", query).Code)
	assert.Equal(t, http.StatusGone, getSignedFile(t, router, "f1", query).Code)
	assert.Equal(t, http.StatusTooManyRequests, getSignedFile(t, router, "f1", query).Code)
}
