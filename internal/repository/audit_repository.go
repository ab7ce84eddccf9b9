package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gkintu/hukasa-staging-sub001/internal/models"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, entry models.AuditEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	const query = `
		INSERT INTO audit_log (
			id, actor_id, action, target_type, target_id, target_name, metadata, ip_address, user_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
		)
	`

	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.TargetName,
		metadata,
		entry.IPAddress,
		entry.UserAgent,
	)
	return err
}

func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	const query = `
		SELECT id, actor_id, action, target_type, target_id, target_name, metadata, ip_address, user_agent, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var metadata []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.TargetType,
			&entry.TargetID,
			&entry.TargetName,
			&metadata,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
