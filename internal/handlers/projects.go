package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gkintu/hukasa-staging-sub001/internal/audit"
	"github.com/gkintu/hukasa-staging-sub001/internal/deletion"
	"github.com/gkintu/hukasa-staging-sub001/internal/ids"
	"github.com/gkintu/hukasa-staging-sub001/internal/models"
	"github.com/gkintu/hukasa-staging-sub001/internal/repository"
)

type projectRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h HandlerSet) CreateProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	project := models.Project{
		ID:     ids.New(),
		UserID: user.ID,
		Name:   req.Name,
	}
	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("create project failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": gin.H{"id": project.ID, "name": project.Name}})
}

func (h HandlerSet) ListProjects(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	projects, err := h.projects.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("list projects failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]gin.H, 0, len(projects))
	for _, p := range projects {
		items = append(items, gin.H{
			"id":        p.ID,
			"name":      p.Name,
			"createdAt": p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) ListProjectImages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	project, err := h.ownedProject(c, user)
	if err != nil {
		return
	}

	images, err := h.images.ListByProject(c.Request.Context(), project.ID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Msg("list project images failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": sourceImageItems(images)})
}

func (h HandlerSet) RenameProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	project, err := h.ownedProject(c, user)
	if err != nil {
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.projects.Rename(c.Request.Context(), project.ID, req.Name); err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Msg("rename project failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	h.auditor.Record(c.Request.Context(), audit.Record{
		ActorID:    user.ID,
		Action:     "project.rename",
		TargetType: "project",
		TargetID:   project.ID,
		TargetName: req.Name,
		Metadata:   map[string]any{"previousName": project.Name},
		IPAddress:  c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
	})

	c.JSON(http.StatusOK, gin.H{"status": "renamed"})
}

// DeleteProject full-cascades every source image in the project, then drops
// the project row.
func (h HandlerSet) DeleteProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	project, err := h.ownedProject(c, user)
	if err != nil {
		return
	}

	images, err := h.images.ListByProject(c.Request.Context(), project.ID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Msg("list project images failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	totalVariants := 0
	totalFiles := 0
	for _, img := range images {
		result, err := h.policy.Delete(c.Request.Context(), img.ID, deletion.DeleteRequest{DeleteSourceFile: true})
		if err != nil {
			if errors.Is(err, repository.ErrSourceImageNotFound) {
				continue
			}
			h.log.Error().Err(err).Str("source_image_id", img.ID).Msg("cascade delete failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		totalVariants += result.VariantsDeleted
		totalFiles += len(result.FilesRemoved)
	}

	if err := h.projects.Delete(c.Request.Context(), project.ID); err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Msg("delete project failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	h.auditor.Record(c.Request.Context(), audit.Record{
		ActorID:    user.ID,
		Action:     "project.delete",
		TargetType: "project",
		TargetID:   project.ID,
		TargetName: project.Name,
		Metadata: map[string]any{
			"sourceImages":    len(images),
			"variantsDeleted": totalVariants,
			"filesDeleted":    totalFiles,
		},
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})

	c.JSON(http.StatusOK, gin.H{
		"status":          "deleted",
		"sourceImages":    len(images),
		"variantsDeleted": totalVariants,
		"filesDeleted":    totalFiles,
	})
}

// ownedProject resolves the :id param and enforces ownership; it writes the
// error response itself and returns a non-nil error when the caller should
// stop.
func (h HandlerSet) ownedProject(c *gin.Context, user models.User) (models.Project, error) {
	project, err := h.projects.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project_not_found"})
			return models.Project{}, err
		}
		h.log.Error().Err(err).Msg("load project failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return models.Project{}, err
	}

	if project.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "project_not_found"})
		return models.Project{}, repository.ErrProjectNotFound
	}
	return project, nil
}
