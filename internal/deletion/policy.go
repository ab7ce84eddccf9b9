package deletion

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gkintu/hukasa-staging-sub001/internal/models"
)

// DeleteRequest carries the caller's independent deletion intents. The
// precedence among them is defined by IntentOf.
type DeleteRequest struct {
	DeleteVariants    bool   `json:"deleteVariants"`
	DeleteSourceImage bool   `json:"deleteSourceImage"`
	DeleteSourceFile  bool   `json:"deleteSourceFile"`
	Reason            string `json:"reason"`
}

// Intent is the single branch a delete call executes, derived once from the
// request flags. Exactly one intent applies per call.
type Intent int

const (
	IntentNoOp Intent = iota
	IntentVariantsOnly
	IntentCascadeKeepFile
	IntentFullCascade
)

// IntentOf resolves the request flags into one intent, highest tier first.
func IntentOf(req DeleteRequest) Intent {
	switch {
	case req.DeleteSourceFile:
		return IntentFullCascade
	case req.DeleteSourceImage:
		return IntentCascadeKeepFile
	case req.DeleteVariants:
		return IntentVariantsOnly
	default:
		return IntentNoOp
	}
}

// Result reports what a delete call actually removed.
type Result struct {
	SourceDeleted   bool
	VariantsDeleted int
	FilesRemoved    []string
}

func (r Result) Summary() string {
	parts := make([]string, 0, 3)
	if r.SourceDeleted {
		parts = append(parts, "source image")
	}
	parts = append(parts,
		fmt.Sprintf("%d variant(s)", r.VariantsDeleted),
		fmt.Sprintf("%d file(s)", len(r.FilesRemoved)),
	)
	return "Successfully deleted " + strings.Join(parts, ", ")
}

// FileStore is the filesystem collaborator. Paths are relative to the
// storage root.
type FileStore interface {
	Exists(relPath string) (bool, error)
	Delete(relPath string) error
	ListDirectory(relPath string) ([]os.DirEntry, error)
	RemoveEmptyDirectory(relPath string) error
}

// RowStore is the database collaborator. DeleteSourceImage cascades variant
// rows at the data layer; DeleteVariantsBySource and DeleteVariant return the
// deleted rows so their files can be cleaned up.
type RowStore interface {
	GetSourceImageWithVariants(ctx context.Context, id string) (models.SourceImage, []models.Variant, error)
	DeleteSourceImage(ctx context.Context, id string) error
	DeleteVariantsBySource(ctx context.Context, sourceImageID string) ([]models.Variant, error)
	DeleteVariant(ctx context.Context, id string) (models.Variant, error)
}

// SummaryCache invalidates cached per-source aggregates after variant
// deletion.
type SummaryCache interface {
	Invalidate(ctx context.Context, sourceImageID string) error
}

// Policy decides and executes what a delete request removes: which rows,
// which files, and which now-empty directories afterwards. File deletion is
// best-effort throughout; a missing or stubborn file never fails the call.
type Policy struct {
	rows  RowStore
	files FileStore
	cache SummaryCache
	log   zerolog.Logger
}

func NewPolicy(rows RowStore, files FileStore, cache SummaryCache, log zerolog.Logger) *Policy {
	return &Policy{
		rows:  rows,
		files: files,
		cache: cache,
		log:   log,
	}
}

// Delete executes the tier selected by the request flags against one source
// image. It fails before any side effect when the source image does not
// exist. An all-false request is a silent no-op, not an error.
func (p *Policy) Delete(ctx context.Context, sourceImageID string, req DeleteRequest) (Result, error) {
	img, variants, err := p.rows.GetSourceImageWithVariants(ctx, sourceImageID)
	if err != nil {
		return Result{}, err
	}

	var result Result

	switch IntentOf(req) {
	case IntentNoOp:
		return result, nil

	case IntentVariantsOnly:
		deleted, err := p.rows.DeleteVariantsBySource(ctx, img.ID)
		if err != nil {
			return Result{}, fmt.Errorf("delete variant rows: %w", err)
		}
		result.VariantsDeleted = len(deleted)
		for _, v := range deleted {
			p.removeVariantFile(v, &result)
		}

	case IntentCascadeKeepFile:
		for _, v := range variants {
			p.removeVariantFile(v, &result)
		}
		if err := p.rows.DeleteSourceImage(ctx, img.ID); err != nil {
			return Result{}, fmt.Errorf("delete source image row: %w", err)
		}
		result.SourceDeleted = true
		result.VariantsDeleted = len(variants)

	case IntentFullCascade:
		p.removeFile(img.FilePath, &result)
		for _, v := range variants {
			p.removeVariantFile(v, &result)
		}
		if err := p.rows.DeleteSourceImage(ctx, img.ID); err != nil {
			return Result{}, fmt.Errorf("delete source image row: %w", err)
		}
		result.SourceDeleted = true
		result.VariantsDeleted = len(variants)
		p.pruneUserDirectories(img.UserID)
	}

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx, img.ID); err != nil {
			p.log.Warn().Err(err).
				Str("source_image_id", img.ID).
				Msg("summary cache invalidation failed")
		}
	}

	return result, nil
}

// DeleteVariant removes a single variant row, best-effort deletes its file,
// and invalidates the parent source image's cached summary.
func (p *Policy) DeleteVariant(ctx context.Context, variantID string) (Result, error) {
	v, err := p.rows.DeleteVariant(ctx, variantID)
	if err != nil {
		return Result{}, err
	}

	result := Result{VariantsDeleted: 1}
	p.removeVariantFile(v, &result)

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx, v.SourceImageID); err != nil {
			p.log.Warn().Err(err).
				Str("source_image_id", v.SourceImageID).
				Msg("summary cache invalidation failed")
		}
	}

	return result, nil
}

func (p *Policy) removeVariantFile(v models.Variant, result *Result) {
	if v.FilePath == nil {
		return
	}
	p.removeFile(*v.FilePath, result)
}

// removeFile attempts one physical deletion. Failure is logged and skipped:
// the file may legitimately already be gone, and a storage hiccup must not
// block the user-visible deletion.
func (p *Policy) removeFile(relPath string, result *Result) {
	if relPath == "" {
		return
	}
	if err := p.files.Delete(relPath); err != nil {
		p.log.Warn().Err(err).Str("path", relPath).Msg("file deletion failed")
		return
	}
	result.FilesRemoved = append(result.FilesRemoved, relPath)
}

// pruneUserDirectories removes now-empty directories left behind by a full
// cascade: the user's sources and generations trees first, then the user
// root itself. Best-effort hygiene only.
func (p *Policy) pruneUserDirectories(userID string) {
	p.pruneDirectory(path.Join(userID, "sources"))
	p.pruneDirectory(path.Join(userID, "generations"))
	p.pruneDirectory(userID)
}

// pruneDirectory prunes children bottom-up, then removes the directory if it
// ended up empty. Unreadable (already absent) directories are skipped.
func (p *Policy) pruneDirectory(relPath string) {
	entries, err := p.files.ListDirectory(relPath)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			p.pruneDirectory(path.Join(relPath, entry.Name()))
		}
	}

	if err := p.files.RemoveEmptyDirectory(relPath); err == nil {
		p.log.Debug().Str("path", relPath).Msg("pruned empty directory")
	}
}
