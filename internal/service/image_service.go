package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/rs/zerolog"

	"github.com/gkintu/hukasa-staging-sub001/internal/cache"
	"github.com/gkintu/hukasa-staging-sub001/internal/ids"
	"github.com/gkintu/hukasa-staging-sub001/internal/media/sniffer"
	"github.com/gkintu/hukasa-staging-sub001/internal/models"
	"github.com/gkintu/hukasa-staging-sub001/internal/repository"
	"github.com/gkintu/hukasa-staging-sub001/internal/staging"
	"github.com/gkintu/hukasa-staging-sub001/internal/storage"
)

const maxVariantsPerRequest = 8

type ImageService struct {
	images     *repository.ImageRepository
	files      *storage.FileStore
	dispatcher *staging.Dispatcher
	summaries  *cache.SummaryCache
	log        zerolog.Logger
}

func NewImageService(
	images *repository.ImageRepository,
	files *storage.FileStore,
	dispatcher *staging.Dispatcher,
	summaries *cache.SummaryCache,
	log zerolog.Logger,
) *ImageService {
	return &ImageService{
		images:     images,
		files:      files,
		dispatcher: dispatcher,
		summaries:  summaries,
		log:        log,
	}
}

type UploadInput struct {
	User        models.User
	ProjectID   string
	File        multipart.File
	Header      *multipart.FileHeader
	DisplayName string
}

func (s *ImageService) Upload(ctx context.Context, input UploadInput) (models.SourceImage, error) {
	if input.File == nil || input.Header == nil {
		return models.SourceImage{}, errors.New("invalid file payload")
	}

	head := make([]byte, 512)
	n, err := input.File.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return models.SourceImage{}, fmt.Errorf("read head: %w", err)
	}
	head = head[:n]

	result, err := sniffer.DetectHead(head)
	if err != nil {
		return models.SourceImage{}, fmt.Errorf("detect type: %w", err)
	}

	declared := sniffer.MimeTypeFromHTTP(http.Header(input.Header.Header))
	if declared != "" && declared != result.MIME {
		return models.SourceImage{}, fmt.Errorf("content type mismatch: declared %s, actual %s", declared, result.MIME)
	}

	if _, err := input.File.Seek(0, io.SeekStart); err != nil {
		return models.SourceImage{}, fmt.Errorf("rewind: %w", err)
	}

	imageID := ids.New()
	relPath := path.Join(input.User.ID, "sources", fmt.Sprintf("%s.%s", imageID, result.Type))

	size, err := s.files.Save(relPath, input.File)
	if err != nil {
		return models.SourceImage{}, fmt.Errorf("save file: %w", err)
	}

	displayName := input.DisplayName
	if displayName == "" {
		displayName = input.Header.Filename
	}

	img := models.SourceImage{
		ID:          imageID,
		UserID:      input.User.ID,
		ProjectID:   input.ProjectID,
		FilePath:    relPath,
		DisplayName: displayName,
		Format:      string(result.Type),
		SizeBytes:   size,
	}

	if err := s.images.Create(ctx, img); err != nil {
		// Row creation failed, the stored file is unreachable. Clean it up.
		if delErr := s.files.Delete(relPath); delErr != nil {
			s.log.Warn().Err(delErr).Str("path", relPath).Msg("orphan cleanup failed")
		}
		return models.SourceImage{}, fmt.Errorf("save metadata: %w", err)
	}

	return img, nil
}

type StagingInput struct {
	SourceImageID string
	Style         string
	RoomType      string
	Count         int
}

// RequestStaging creates pending variants for a source image and hands the
// render task to the dispatcher.
func (s *ImageService) RequestStaging(ctx context.Context, input StagingInput) ([]models.Variant, error) {
	if input.Count < 1 {
		input.Count = 1
	}
	if input.Count > maxVariantsPerRequest {
		return nil, fmt.Errorf("at most %d variants per request", maxVariantsPerRequest)
	}

	img, err := s.images.GetByID(ctx, input.SourceImageID)
	if err != nil {
		return nil, err
	}

	variants := make([]models.Variant, 0, input.Count)
	for i := 0; i < input.Count; i++ {
		v := models.Variant{
			ID:            ids.New(),
			SourceImageID: img.ID,
			Style:         input.Style,
			RoomType:      input.RoomType,
			Status:        models.VariantStatusPending,
		}
		if err := s.images.CreateVariant(ctx, v); err != nil {
			return nil, fmt.Errorf("create variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := s.invalidateSummary(ctx, img.ID); err != nil {
		s.log.Warn().Err(err).Str("source_image_id", img.ID).Msg("summary invalidation failed")
	}

	src, err := s.files.Open(img.FilePath)
	if err != nil {
		s.markFailed(ctx, variants)
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		s.markFailed(ctx, variants)
		return nil, fmt.Errorf("stat source file: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, img, variants, src, info.Size(), "image/"+img.Format); err != nil {
		s.markFailed(ctx, variants)
		return nil, fmt.Errorf("dispatch render: %w", err)
	}

	return variants, nil
}

// VariantSummary is a read-through over the cached per-source aggregate.
func (s *ImageService) VariantSummary(ctx context.Context, sourceImageID string) (cache.VariantSummary, error) {
	if cached, err := s.summaries.Get(ctx, sourceImageID); err == nil && cached != nil {
		return *cached, nil
	} else if err != nil {
		s.log.Warn().Err(err).Msg("summary cache read failed")
	}

	variants, err := s.images.ListVariantsBySource(ctx, sourceImageID)
	if err != nil {
		return cache.VariantSummary{}, err
	}

	summary := cache.VariantSummary{SourceImageID: sourceImageID, Total: len(variants)}
	for _, v := range variants {
		switch v.Status {
		case models.VariantStatusCompleted:
			summary.Completed++
		case models.VariantStatusFailed:
			summary.Failed++
		}
	}

	if err := s.summaries.Set(ctx, summary); err != nil {
		s.log.Warn().Err(err).Msg("summary cache write failed")
	}
	return summary, nil
}

func (s *ImageService) invalidateSummary(ctx context.Context, sourceImageID string) error {
	if s.summaries == nil {
		return nil
	}
	return s.summaries.Invalidate(ctx, sourceImageID)
}

func (s *ImageService) markFailed(ctx context.Context, variants []models.Variant) {
	for _, v := range variants {
		if err := s.images.UpdateVariantStatus(ctx, v.ID, models.VariantStatusFailed, nil); err != nil {
			s.log.Warn().Err(err).Str("variant_id", v.ID).Msg("mark variant failed errored")
		}
	}
}
