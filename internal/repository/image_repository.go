package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gkintu/hukasa-staging-sub001/internal/models"
)

var (
	ErrSourceImageNotFound = errors.New("source image not found")
	ErrVariantNotFound     = errors.New("variant not found")
)

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Create(ctx context.Context, img models.SourceImage) error {
	const query = `
		INSERT INTO source_images (
			id, user_id, project_id, file_path, display_name, favorite, format, size_bytes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		img.ID,
		img.UserID,
		img.ProjectID,
		img.FilePath,
		img.DisplayName,
		img.Favorite,
		img.Format,
		img.SizeBytes,
	)
	return err
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.SourceImage, error) {
	const query = `
		SELECT id, user_id, project_id, file_path, display_name, favorite, format, size_bytes, created_at, updated_at
		FROM source_images WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var img models.SourceImage
	if err := row.Scan(
		&img.ID,
		&img.UserID,
		&img.ProjectID,
		&img.FilePath,
		&img.DisplayName,
		&img.Favorite,
		&img.Format,
		&img.SizeBytes,
		&img.CreatedAt,
		&img.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SourceImage{}, ErrSourceImageNotFound
		}
		return models.SourceImage{}, err
	}
	return img, nil
}

// GetSourceImageWithVariants loads a source image and all of its variants in
// one call, for the deletion policy and the detail endpoint.
func (r *ImageRepository) GetSourceImageWithVariants(ctx context.Context, id string) (models.SourceImage, []models.Variant, error) {
	img, err := r.GetByID(ctx, id)
	if err != nil {
		return models.SourceImage{}, nil, err
	}

	variants, err := r.ListVariantsBySource(ctx, id)
	if err != nil {
		return models.SourceImage{}, nil, err
	}
	return img, variants, nil
}

// DeleteSourceImage removes the row; variant rows go with it via the
// ON DELETE CASCADE foreign key.
func (r *ImageRepository) DeleteSourceImage(ctx context.Context, id string) error {
	const query = `DELETE FROM source_images WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSourceImageNotFound
	}
	return nil
}

// DeleteVariantsBySource removes all variant rows of one source image and
// returns the deleted rows so callers can clean up their files.
func (r *ImageRepository) DeleteVariantsBySource(ctx context.Context, sourceImageID string) ([]models.Variant, error) {
	const query = `
		DELETE FROM variants
		WHERE source_image_id = $1
		RETURNING id, source_image_id, file_path, style, room_type, status, created_at, updated_at
	`

	rows, err := r.pool.Query(ctx, query, sourceImageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVariants(rows)
}

func (r *ImageRepository) DeleteVariant(ctx context.Context, id string) (models.Variant, error) {
	const query = `
		DELETE FROM variants
		WHERE id = $1
		RETURNING id, source_image_id, file_path, style, room_type, status, created_at, updated_at
	`

	row := r.pool.QueryRow(ctx, query, id)
	v, err := scanVariant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Variant{}, ErrVariantNotFound
		}
		return models.Variant{}, err
	}
	return v, nil
}

func (r *ImageRepository) GetVariant(ctx context.Context, id string) (models.Variant, error) {
	const query = `
		SELECT id, source_image_id, file_path, style, room_type, status, created_at, updated_at
		FROM variants WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	v, err := scanVariant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Variant{}, ErrVariantNotFound
		}
		return models.Variant{}, err
	}
	return v, nil
}

func (r *ImageRepository) CreateVariant(ctx context.Context, v models.Variant) error {
	const query = `
		INSERT INTO variants (
			id, source_image_id, file_path, style, room_type, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		v.ID,
		v.SourceImageID,
		v.FilePath,
		v.Style,
		v.RoomType,
		v.Status,
	)
	return err
}

func (r *ImageRepository) UpdateVariantStatus(ctx context.Context, id string, status models.VariantStatus, filePath *string) error {
	const query = `
		UPDATE variants
		SET status = $2,
		    file_path = COALESCE($3, file_path),
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, status, filePath)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

func (r *ImageRepository) ListVariantsBySource(ctx context.Context, sourceImageID string) ([]models.Variant, error) {
	const query = `
		SELECT id, source_image_id, file_path, style, room_type, status, created_at, updated_at
		FROM variants
		WHERE source_image_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, sourceImageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVariants(rows)
}

func (r *ImageRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.SourceImage, error) {
	const query = `
		SELECT id, user_id, project_id, file_path, display_name, favorite, format, size_bytes, created_at, updated_at
		FROM source_images
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSourceImages(rows)
}

func (r *ImageRepository) ListByProject(ctx context.Context, projectID string) ([]models.SourceImage, error) {
	const query = `
		SELECT id, user_id, project_id, file_path, display_name, favorite, format, size_bytes, created_at, updated_at
		FROM source_images
		WHERE project_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSourceImages(rows)
}

func (r *ImageRepository) List(ctx context.Context, limit, offset int) ([]models.SourceImage, error) {
	const query = `
		SELECT id, user_id, project_id, file_path, display_name, favorite, format, size_bytes, created_at, updated_at
		FROM source_images
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSourceImages(rows)
}

func (r *ImageRepository) Rename(ctx context.Context, id string, displayName string) error {
	const query = `
		UPDATE source_images SET display_name = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, displayName)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSourceImageNotFound
	}
	return nil
}

func (r *ImageRepository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	const query = `
		UPDATE source_images SET favorite = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, favorite)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSourceImageNotFound
	}
	return nil
}

func (r *ImageRepository) MoveToProject(ctx context.Context, id string, projectID string) error {
	const query = `
		UPDATE source_images SET project_id = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, projectID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSourceImageNotFound
	}
	return nil
}

func scanVariant(row pgx.Row) (models.Variant, error) {
	var v models.Variant
	err := row.Scan(
		&v.ID,
		&v.SourceImageID,
		&v.FilePath,
		&v.Style,
		&v.RoomType,
		&v.Status,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}

func scanVariants(rows pgx.Rows) ([]models.Variant, error) {
	var variants []models.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func scanSourceImages(rows pgx.Rows) ([]models.SourceImage, error) {
	var images []models.SourceImage
	for rows.Next() {
		var img models.SourceImage
		if err := rows.Scan(
			&img.ID,
			&img.UserID,
			&img.ProjectID,
			&img.FilePath,
			&img.DisplayName,
			&img.Favorite,
			&img.Format,
			&img.SizeBytes,
			&img.CreatedAt,
			&img.UpdatedAt,
		); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}
