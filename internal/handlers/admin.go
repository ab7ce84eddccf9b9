package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gkintu/hukasa-staging-sub001/internal/audit"
	"github.com/gkintu/hukasa-staging-sub001/internal/deletion"
	"github.com/gkintu/hukasa-staging-sub001/internal/models"
	"github.com/gkintu/hukasa-staging-sub001/internal/repository"
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	limit, offset := pagination(c, 50, 200)

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("admin list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]gin.H, 0, len(users))
	for _, user := range users {
		items = append(items, gin.H{
			"id":          user.ID,
			"email":       user.Email,
			"displayName": user.DisplayName,
			"role":        user.Role,
			"status":      user.Status,
			"createdAt":   user.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (h HandlerSet) AdminSetUserStatus(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	status := models.UserStatus(req.Status)
	switch status {
	case models.UserStatusActive, models.UserStatusSuspended:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}

	target, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("load user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	if err := h.users.UpdateStatus(c.Request.Context(), target.ID, status); err != nil {
		h.log.Error().Err(err).Str("user_id", target.ID).Msg("update user status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	h.auditor.Record(c.Request.Context(), audit.Record{
		ActorID:    actor.ID,
		Action:     "user.status",
		TargetType: "user",
		TargetID:   target.ID,
		TargetName: target.Email,
		Metadata: map[string]any{
			"previousStatus": string(target.Status),
			"newStatus":      string(status),
			"reason":         req.Reason,
		},
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h HandlerSet) AdminListImages(c *gin.Context) {
	limit, offset := pagination(c, 50, 200)

	images, err := h.images.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("admin list images failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]gin.H, 0, len(images))
	for _, img := range images {
		items = append(items, gin.H{
			"id":          img.ID,
			"userId":      img.UserID,
			"projectId":   img.ProjectID,
			"displayName": img.DisplayName,
			"format":      img.Format,
			"sizeBytes":   img.SizeBytes,
			"createdAt":   img.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AdminDeleteImage full-cascades any user's source image, recording the
// moderation reason in the audit log.
func (h HandlerSet) AdminDeleteImage(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	img, err := h.images.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrSourceImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("load image failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	result, err := h.policy.Delete(c.Request.Context(), img.ID, deletion.DeleteRequest{
		DeleteSourceFile: true,
		Reason:           c.Query("reason"),
	})
	if err != nil {
		h.log.Error().Err(err).Str("source_image_id", img.ID).Msg("admin delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	h.auditor.Record(c.Request.Context(), audit.Record{
		ActorID:    actor.ID,
		Action:     "admin.image.delete",
		TargetType: "source_image",
		TargetID:   img.ID,
		TargetName: img.DisplayName,
		Metadata: map[string]any{
			"ownerId":         img.UserID,
			"reason":          c.Query("reason"),
			"variantsDeleted": result.VariantsDeleted,
			"filesDeleted":    len(result.FilesRemoved),
		},
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})

	c.JSON(http.StatusOK, gin.H{
		"message":         result.Summary(),
		"variantsDeleted": result.VariantsDeleted,
		"filesDeleted":    result.FilesRemoved,
	})
}

func (h HandlerSet) AdminListAudit(c *gin.Context) {
	limit, offset := pagination(c, 50, 200)

	entries, err := h.audits.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("list audit log failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, gin.H{
			"id":         entry.ID,
			"actorId":    entry.ActorID,
			"action":     entry.Action,
			"targetType": entry.TargetType,
			"targetId":   entry.TargetID,
			"targetName": entry.TargetName,
			"metadata":   entry.Metadata,
			"ipAddress":  entry.IPAddress,
			"createdAt":  entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
