package deletion

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkintu/hukasa-staging-sub001/internal/models"
	"github.com/gkintu/hukasa-staging-sub001/internal/repository"
	"github.com/gkintu/hukasa-staging-sub001/internal/storage"
)

type fakeRows struct {
	images   map[string]models.SourceImage
	variants map[string][]models.Variant
}

func newFakeRows() *fakeRows {
	return &fakeRows{
		images:   make(map[string]models.SourceImage),
		variants: make(map[string][]models.Variant),
	}
}

func (f *fakeRows) GetSourceImageWithVariants(_ context.Context, id string) (models.SourceImage, []models.Variant, error) {
	img, ok := f.images[id]
	if !ok {
		return models.SourceImage{}, nil, repository.ErrSourceImageNotFound
	}
	return img, f.variants[id], nil
}

func (f *fakeRows) DeleteSourceImage(_ context.Context, id string) error {
	if _, ok := f.images[id]; !ok {
		return repository.ErrSourceImageNotFound
	}
	delete(f.images, id)
	delete(f.variants, id)
	return nil
}

func (f *fakeRows) DeleteVariantsBySource(_ context.Context, sourceImageID string) ([]models.Variant, error) {
	deleted := f.variants[sourceImageID]
	delete(f.variants, sourceImageID)
	return deleted, nil
}

func (f *fakeRows) DeleteVariant(_ context.Context, id string) (models.Variant, error) {
	for sourceID, vs := range f.variants {
		for i, v := range vs {
			if v.ID == id {
				f.variants[sourceID] = append(vs[:i], vs[i+1:]...)
				return v, nil
			}
		}
	}
	return models.Variant{}, repository.ErrVariantNotFound
}

type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) Invalidate(_ context.Context, sourceImageID string) error {
	f.invalidated = append(f.invalidated, sourceImageID)
	return nil
}

func strptr(s string) *string { return &s }

// seedImage creates the row fixtures and writes the given files to disk.
func seedImage(t *testing.T, rows *fakeRows, store *storage.FileStore, userID, imageID string, variantPaths []*string, writeSource bool) models.SourceImage {
	t.Helper()

	img := models.SourceImage{
		ID:       imageID,
		UserID:   userID,
		FilePath: path.Join(userID, "sources", imageID+".jpg"),
	}
	rows.images[imageID] = img
	if writeSource {
		writeFile(t, store, img.FilePath)
	}

	for i, vp := range variantPaths {
		v := models.Variant{
			ID:            imageID + "-v" + string(rune('1'+i)),
			SourceImageID: imageID,
			FilePath:      vp,
			Status:        models.VariantStatusCompleted,
		}
		rows.variants[imageID] = append(rows.variants[imageID], v)
	}
	return img
}

func writeFile(t *testing.T, store *storage.FileStore, relPath string) {
	t.Helper()
	full := filepath.Join(store.Root(), filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("img"), 0o644))
}

func fileExists(t *testing.T, store *storage.FileStore, relPath string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(store.Root(), filepath.FromSlash(relPath)))
	if err != nil {
		require.True(t, os.IsNotExist(err))
		return false
	}
	return true
}

func newTestPolicy(t *testing.T) (*Policy, *fakeRows, *storage.FileStore, *fakeCache) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	rows := newFakeRows()
	cache := &fakeCache{}
	return NewPolicy(rows, store, cache, zerolog.Nop()), rows, store, cache
}

func TestIntentOf(t *testing.T) {
	tests := []struct {
		name string
		req  DeleteRequest
		want Intent
	}{
		{"no flags", DeleteRequest{}, IntentNoOp},
		{"variants only", DeleteRequest{DeleteVariants: true}, IntentVariantsOnly},
		{"source image", DeleteRequest{DeleteSourceImage: true}, IntentCascadeKeepFile},
		{"source file", DeleteRequest{DeleteSourceFile: true}, IntentFullCascade},
		{"source file wins over all", DeleteRequest{DeleteVariants: true, DeleteSourceImage: true, DeleteSourceFile: true}, IntentFullCascade},
		{"source image wins over variants", DeleteRequest{DeleteVariants: true, DeleteSourceImage: true}, IntentCascadeKeepFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntentOf(tt.req))
		})
	}
}

func TestPolicyDelete_NoFlagsIsNoOp(t *testing.T) {
	policy, rows, store, _ := newTestPolicy(t)
	img := seedImage(t, rows, store, "u1", "img1", []*string{strptr("u1/generations/g1.jpg")}, true)
	writeFile(t, store, "u1/generations/g1.jpg")

	result, err := policy.Delete(context.Background(), img.ID, DeleteRequest{Reason: "just logging"})
	require.NoError(t, err)

	assert.False(t, result.SourceDeleted)
	assert.Zero(t, result.VariantsDeleted)
	assert.Empty(t, result.FilesRemoved)
	assert.Contains(t, rows.images, img.ID)
	assert.True(t, fileExists(t, store, img.FilePath))
	assert.True(t, fileExists(t, store, "u1/generations/g1.jpg"))
}

func TestPolicyDelete_NotFound(t *testing.T) {
	policy, _, _, _ := newTestPolicy(t)

	_, err := policy.Delete(context.Background(), "missing", DeleteRequest{DeleteSourceFile: true})
	assert.ErrorIs(t, err, repository.ErrSourceImageNotFound)
}

func TestPolicyDelete_VariantsOnly(t *testing.T) {
	policy, rows, store, _ := newTestPolicy(t)
	img := seedImage(t, rows, store, "u1", "img1", []*string{strptr("u1/generations/g1.jpg")}, true)
	writeFile(t, store, "u1/generations/g1.jpg")

	result, err := policy.Delete(context.Background(), img.ID, DeleteRequest{DeleteVariants: true})
	require.NoError(t, err)

	assert.False(t, result.SourceDeleted)
	assert.Equal(t, 1, result.VariantsDeleted)
	assert.Equal(t, []string{"u1/generations/g1.jpg"}, result.FilesRemoved)

	// Source image row and file stay.
	assert.Contains(t, rows.images, img.ID)
	assert.True(t, fileExists(t, store, img.FilePath))
	assert.False(t, fileExists(t, store, "u1/generations/g1.jpg"))
}

func TestPolicyDelete_CascadeKeepFile(t *testing.T) {
	policy, rows, store, _ := newTestPolicy(t)
	img := seedImage(t, rows, store, "u1", "img1", []*string{strptr("u1/generations/g1.jpg")}, true)
	writeFile(t, store, "u1/generations/g1.jpg")

	result, err := policy.Delete(context.Background(), img.ID, DeleteRequest{DeleteSourceImage: true})
	require.NoError(t, err)

	assert.True(t, result.SourceDeleted)
	assert.Equal(t, 1, result.VariantsDeleted)
	assert.NotContains(t, rows.images, img.ID)

	// The source file stays on disk by contract.
	assert.True(t, fileExists(t, store, img.FilePath))
	assert.False(t, fileExists(t, store, "u1/generations/g1.jpg"))
}

func TestPolicyDelete_FullCascade(t *testing.T) {
	policy, rows, store, _ := newTestPolicy(t)

	// img1 has v1 with a real file and v2 whose file is missing on disk.
	img := seedImage(t, rows, store, "u1", "img1",
		[]*string{strptr("u1/generations/v1.jpg"), strptr("u1/generations/v2.jpg")}, true)
	writeFile(t, store, "u1/generations/v1.jpg")

	result, err := policy.Delete(context.Background(), img.ID, DeleteRequest{DeleteSourceFile: true})
	require.NoError(t, err)

	assert.True(t, result.SourceDeleted)
	assert.Equal(t, 2, result.VariantsDeleted)
	assert.ElementsMatch(t, []string{img.FilePath, "u1/generations/v1.jpg"}, result.FilesRemoved,
		"missing v2 file must not be reported as removed")

	assert.NotContains(t, rows.images, img.ID)
	assert.False(t, fileExists(t, store, img.FilePath))

	// The user's now-empty directories were pruned.
	_, err = os.Stat(filepath.Join(store.Root(), "u1"))
	assert.True(t, os.IsNotExist(err))
}

func TestPolicyDelete_PruningLeavesSiblings(t *testing.T) {
	policy, rows, store, _ := newTestPolicy(t)
	img := seedImage(t, rows, store, "u1", "img1", nil, true)

	// Another untouched source image owned by the same user.
	sibling := "u1/sources/other.jpg"
	writeFile(t, store, sibling)

	result, err := policy.Delete(context.Background(), img.ID, DeleteRequest{DeleteSourceFile: true})
	require.NoError(t, err)
	assert.True(t, result.SourceDeleted)

	assert.True(t, fileExists(t, store, sibling), "pruning must never remove non-empty directories")
}

func TestPolicyDelete_FileFailureIsNonFatal(t *testing.T) {
	policy, rows, store, _ := newTestPolicy(t)

	// Source file never written to disk; variant path is nil (mid-generation).
	img := seedImage(t, rows, store, "u1", "img1", []*string{nil}, false)

	result, err := policy.Delete(context.Background(), img.ID, DeleteRequest{DeleteSourceFile: true})
	require.NoError(t, err)

	assert.True(t, result.SourceDeleted)
	assert.Equal(t, 1, result.VariantsDeleted)
	assert.Empty(t, result.FilesRemoved)
	assert.NotContains(t, rows.images, img.ID)
}

func TestPolicyDeleteVariant(t *testing.T) {
	policy, rows, store, cache := newTestPolicy(t)
	img := seedImage(t, rows, store, "u1", "img1", []*string{strptr("u1/generations/g1.jpg")}, true)
	writeFile(t, store, "u1/generations/g1.jpg")

	result, err := policy.DeleteVariant(context.Background(), "img1-v1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.VariantsDeleted)
	assert.Equal(t, []string{"u1/generations/g1.jpg"}, result.FilesRemoved)
	assert.Equal(t, []string{img.ID}, cache.invalidated)

	_, err = policy.DeleteVariant(context.Background(), "img1-v1")
	assert.ErrorIs(t, err, repository.ErrVariantNotFound)
}

func TestResultSummary(t *testing.T) {
	result := Result{
		SourceDeleted:   true,
		VariantsDeleted: 3,
		FilesRemoved:    []string{"a", "b", "c", "d"},
	}
	assert.Equal(t, "Successfully deleted source image, 3 variant(s), 4 file(s)", result.Summary())

	assert.Equal(t, "Successfully deleted 0 variant(s), 0 file(s)", Result{}.Summary())
}
