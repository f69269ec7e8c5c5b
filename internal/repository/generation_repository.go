package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/digkill/TGVoiceBot/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Create(ctx context.Context, g *models.Generation) error {
	const query = `
INSERT INTO generations (chat_id, audio, model_name, duration, pitch, job_id, status, error)
VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, g.ChatID, g.Audio, g.ModelName, g.Duration, g.Pitch, g.JobID, g.Status, g.Error)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	g.ID = id
	return nil
}

// ListByChatID returns the most recent generations first.
func (r *GenerationRepository) ListByChatID(ctx context.Context, chatID int64, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT id, chat_id, audio, model_name, duration, pitch, COALESCE(job_id, ''), status, COALESCE(error, ''), created_at
FROM generations
WHERE chat_id = ?
ORDER BY id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var generations []models.Generation
	for rows.Next() {
		var g models.Generation
		var status string
		var createdAt timestamp
		if err := rows.Scan(&g.ID, &g.ChatID, &g.Audio, &g.ModelName, &g.Duration, &g.Pitch, &g.JobID, &status, &g.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g.Status = models.GenerationStatus(status)
		g.CreatedAt = createdAt.Time
		generations = append(generations, g)
	}
	return generations, rows.Err()
}
