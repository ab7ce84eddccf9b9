package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gkintu/hukasa-staging-sub001/internal/models"
	"github.com/gkintu/hukasa-staging-sub001/internal/ratelimit"
	"github.com/gkintu/hukasa-staging-sub001/internal/repository"
	"github.com/gkintu/hukasa-staging-sub001/internal/signedurl"
)

// IssueFileURL hands an authenticated owner a time-limited signed URL for one
// of their files, identified by source image or variant id. The URL works
// without a session, so it can be passed to third parties.
func (h HandlerSet) IssueFileURL(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID := c.Param("id")
	if _, err := h.resolveFilePath(c, user, fileID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file_not_found"})
		return
	}

	token := h.signer.Issue(fileID, time.Now().Add(h.cfg.Security.SignedURLTTL))

	c.JSON(http.StatusOK, gin.H{
		"url":       fmt.Sprintf("/api/v1/public/files/%s?%s", fileID, token.Values().Encode()),
		"expires":   token.ExpiresAt,
		"signature": token.Signature,
	})
}

// ServeSignedFile serves a file to a holder of a valid signed URL. Rate
// limiting runs before signature verification so floods are rejected cheaply.
func (h HandlerSet) ServeSignedFile(c *gin.Context) {
	if err := h.limiter.Allow(c.ClientIP()); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		h.log.Error().Err(err).Msg("rate limiter failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	expiresStr := c.Query("expires")
	signature := c.Query("signature")
	if expiresStr == "" || signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_parameters"})
		return
	}

	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_expires"})
		return
	}

	fileID := c.Param("id")
	if err := h.signer.Verify(fileID, expires, signature); err != nil {
		switch {
		case errors.Is(err, signedurl.ErrExpired):
			c.JSON(http.StatusGone, gin.H{"error": "link_expired"})
		case errors.Is(err, signedurl.ErrInvalidSignature):
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid_signature"})
		default:
			h.log.Error().Err(err).Msg("signature verification failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}
		return
	}

	relPath, format, err := h.lookupFilePath(c, fileID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file_not_found"})
		return
	}

	f, err := h.files.Open(relPath)
	if err != nil {
		h.log.Warn().Err(err).Str("path", relPath).Msg("signed file missing on disk")
		c.JSON(http.StatusNotFound, gin.H{"error": "file_not_found"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.log.Error().Err(err).Str("path", relPath).Msg("stat failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.Header("Content-Type", "image/"+format)
	http.ServeContent(c.Writer, c.Request, fileID, info.ModTime(), f)
}

// resolveFilePath checks ownership of the file behind the opaque id.
func (h HandlerSet) resolveFilePath(c *gin.Context, user models.User, fileID string) (string, error) {
	img, err := h.images.GetByID(c.Request.Context(), fileID)
	if err == nil {
		if img.UserID != user.ID {
			return "", repository.ErrSourceImageNotFound
		}
		return img.FilePath, nil
	}
	if !errors.Is(err, repository.ErrSourceImageNotFound) {
		return "", err
	}

	variant, err := h.images.GetVariant(c.Request.Context(), fileID)
	if err != nil {
		return "", err
	}
	parent, err := h.images.GetByID(c.Request.Context(), variant.SourceImageID)
	if err != nil || parent.UserID != user.ID {
		return "", repository.ErrVariantNotFound
	}
	if variant.FilePath == nil {
		return "", repository.ErrVariantNotFound
	}
	return *variant.FilePath, nil
}

// lookupFilePath resolves the opaque id without an ownership check; the
// signed URL itself is the capability here.
func (h HandlerSet) lookupFilePath(c *gin.Context, fileID string) (relPath string, format string, err error) {
	img, err := h.images.GetByID(c.Request.Context(), fileID)
	if err == nil {
		return img.FilePath, img.Format, nil
	}
	if !errors.Is(err, repository.ErrSourceImageNotFound) {
		return "", "", err
	}

	variant, err := h.images.GetVariant(c.Request.Context(), fileID)
	if err != nil {
		return "", "", err
	}
	if variant.FilePath == nil {
		return "", "", repository.ErrVariantNotFound
	}

	parent, err := h.images.GetByID(c.Request.Context(), variant.SourceImageID)
	if err != nil {
		return "", "", err
	}
	return *variant.FilePath, parent.Format, nil
}
