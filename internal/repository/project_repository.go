package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gkintu/hukasa-staging-sub001/internal/models"
)

var ErrProjectNotFound = errors.New("project not found")

type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

func (r *ProjectRepository) Create(ctx context.Context, project models.Project) error {
	const query = `
		INSERT INTO projects (id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query, project.ID, project.UserID, project.Name)
	return err
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (models.Project, error) {
	const query = `
		SELECT id, user_id, name, created_at, updated_at
		FROM projects WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var project models.Project
	if err := row.Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&project.CreatedAt,
		&project.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Project{}, ErrProjectNotFound
		}
		return models.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]models.Project, error) {
	const query = `
		SELECT id, user_id, name, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(
			&project.ID,
			&project.UserID,
			&project.Name,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) Rename(ctx context.Context, id string, name string) error {
	const query = `
		UPDATE projects SET name = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}
