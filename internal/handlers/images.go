package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gkintu/hukasa-staging-sub001/internal/audit"
	"github.com/gkintu/hukasa-staging-sub001/internal/deletion"
	"github.com/gkintu/hukasa-staging-sub001/internal/models"
	"github.com/gkintu/hukasa-staging-sub001/internal/repository"
	"github.com/gkintu/hukasa-staging-sub001/internal/service"
)

func sourceImageItems(images []models.SourceImage) []gin.H {
	items := make([]gin.H, 0, len(images))
	for _, img := range images {
		items = append(items, gin.H{
			"id":          img.ID,
			"projectId":   img.ProjectID,
			"displayName": img.DisplayName,
			"favorite":    img.Favorite,
			"format":      img.Format,
			"sizeBytes":   img.SizeBytes,
			"createdAt":   img.CreatedAt,
		})
	}
	return items
}

func (h HandlerSet) UploadImage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	projectID := c.PostForm("projectId")
	if projectID != "" {
		project, err := h.projects.GetByID(c.Request.Context(), projectID)
		if err != nil || project.UserID != user.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "project_not_found"})
			return
		}
	}

	img, err := h.imageService.Upload(c.Request.Context(), service.UploadInput{
		User:        user,
		ProjectID:   projectID,
		File:        file,
		Header:      header,
		DisplayName: c.PostForm("displayName"),
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("upload failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"image": gin.H{
		"id":          img.ID,
		"projectId":   img.ProjectID,
		"displayName": img.DisplayName,
		"format":      img.Format,
		"sizeBytes":   img.SizeBytes,
		"createdAt":   img.CreatedAt,
	}})
}

func (h HandlerSet) ListImages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c, 50, 200)
	images, err := h.images.ListByUser(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("list images failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": sourceImageItems(images)})
}

func (h HandlerSet) GetImage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	img, variants, err := h.images.GetSourceImageWithVariants(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrSourceImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("load image failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if img.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
		return
	}

	summary, err := h.imageService.VariantSummary(c.Request.Context(), img.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("source_image_id", img.ID).Msg("variant summary failed")
	}

	variantItems := make([]gin.H, 0, len(variants))
	for _, v := range variants {
		variantItems = append(variantItems, gin.H{
			"id":       v.ID,
			"style":    v.Style,
			"roomType": v.RoomType,
			"status":   v.Status,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"image": gin.H{
			"id":          img.ID,
			"projectId":   img.ProjectID,
			"displayName": img.DisplayName,
			"favorite":    img.Favorite,
			"format":      img.Format,
			"sizeBytes":   img.SizeBytes,
			"createdAt":   img.CreatedAt,
		},
		"variants": variantItems,
		"summary": gin.H{
			"total":     summary.Total,
			"completed": summary.Completed,
			"failed":    summary.Failed,
		},
	})
}

type updateImageRequest struct {
	DisplayName *string `json:"displayName"`
	Favorite    *bool   `json:"favorite"`
	ProjectID   *string `json:"projectId"`
}

func (h HandlerSet) UpdateImage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	img, err := h.ownedImage(c, user)
	if err != nil {
		return
	}

	var req updateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	ctx := c.Request.Context()
	if req.DisplayName != nil {
		if err := h.images.Rename(ctx, img.ID, *req.DisplayName); err != nil {
			h.log.Error().Err(err).Str("source_image_id", img.ID).Msg("rename image failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
	}
	if req.Favorite != nil {
		if err := h.images.SetFavorite(ctx, img.ID, *req.Favorite); err != nil {
			h.log.Error().Err(err).Str("source_image_id", img.ID).Msg("set favorite failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
	}
	if req.ProjectID != nil {
		project, err := h.projects.GetByID(ctx, *req.ProjectID)
		if err != nil || project.UserID != user.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "project_not_found"})
			return
		}
		if err := h.images.MoveToProject(ctx, img.ID, project.ID); err != nil {
			h.log.Error().Err(err).Str("source_image_id", img.ID).Msg("move image failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type stagingRequest struct {
	Style    string `json:"style" binding:"required"`
	RoomType string `json:"roomType" binding:"required"`
	Count    int    `json:"count"`
}

func (h HandlerSet) RequestStaging(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	img, err := h.ownedImage(c, user)
	if err != nil {
		return
	}

	var req stagingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	variants, err := h.imageService.RequestStaging(c.Request.Context(), service.StagingInput{
		SourceImageID: img.ID,
		Style:         req.Style,
		RoomType:      req.RoomType,
		Count:         req.Count,
	})
	if err != nil {
		h.log.Error().Err(err).Str("source_image_id", img.ID).Msg("staging request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]gin.H, 0, len(variants))
	for _, v := range variants {
		items = append(items, gin.H{"id": v.ID, "status": v.Status})
	}
	c.JSON(http.StatusOK, gin.H{"variants": items})
}

// DeleteImage runs the tiered deletion policy for one source image. The
// request body carries the three independent flags plus an optional reason;
// an empty body (all flags false) is accepted and deletes nothing.
func (h HandlerSet) DeleteImage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	img, err := h.ownedImage(c, user)
	if err != nil {
		return
	}

	var req deletion.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.policy.Delete(c.Request.Context(), img.ID, req)
	if err != nil {
		if errors.Is(err, repository.ErrSourceImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
			return
		}
		h.log.Error().Err(err).Str("source_image_id", img.ID).Msg("delete image failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	h.auditor.Record(c.Request.Context(), audit.Record{
		ActorID:    user.ID,
		Action:     "image.delete",
		TargetType: "source_image",
		TargetID:   img.ID,
		TargetName: img.DisplayName,
		Metadata: map[string]any{
			"reason":            req.Reason,
			"deleteVariants":    req.DeleteVariants,
			"deleteSourceImage": req.DeleteSourceImage,
			"deleteSourceFile":  req.DeleteSourceFile,
			"sourceDeleted":     result.SourceDeleted,
			"variantsDeleted":   result.VariantsDeleted,
			"filesDeleted":      len(result.FilesRemoved),
		},
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})

	c.JSON(http.StatusOK, gin.H{
		"message":         result.Summary(),
		"sourceDeleted":   result.SourceDeleted,
		"variantsDeleted": result.VariantsDeleted,
		"filesDeleted":    result.FilesRemoved,
	})
}

func (h HandlerSet) DeleteVariant(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	variantID := c.Param("id")
	variant, err := h.images.GetVariant(c.Request.Context(), variantID)
	if err != nil {
		if errors.Is(err, repository.ErrVariantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "variant_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("load variant failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	parent, err := h.images.GetByID(c.Request.Context(), variant.SourceImageID)
	if err != nil || parent.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "variant_not_found"})
		return
	}

	result, err := h.policy.DeleteVariant(c.Request.Context(), variantID)
	if err != nil {
		if errors.Is(err, repository.ErrVariantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "variant_not_found"})
			return
		}
		h.log.Error().Err(err).Str("variant_id", variantID).Msg("delete variant failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      result.Summary(),
		"filesDeleted": result.FilesRemoved,
	})
}

// ownedImage resolves the :id param and enforces ownership; it writes the
// error response itself when the caller should stop.
func (h HandlerSet) ownedImage(c *gin.Context, user models.User) (models.SourceImage, error) {
	img, err := h.images.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrSourceImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
			return models.SourceImage{}, err
		}
		h.log.Error().Err(err).Msg("load image failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return models.SourceImage{}, err
	}
	if img.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
		return models.SourceImage{}, repository.ErrSourceImageNotFound
	}
	return img, nil
}

func pagination(c *gin.Context, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= maxLimit {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return limit, offset
}
