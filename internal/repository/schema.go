package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultEmbeddingDim matches the nomic-embed-text sidecar model.
const DefaultEmbeddingDim = 768

// EnsureSchema creates the tables and extensions the stores rely on.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool, embeddingDim int) error {
	if embeddingDim <= 0 {
		embeddingDim = DefaultEmbeddingDim
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			client JSONB NOT NULL,
			questions JSONB NOT NULL DEFAULT '[]',
			answers JSONB NOT NULL DEFAULT '[]',
			review JSONB,
			output_ref TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL UNIQUE,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS idx_workflows_updated_at ON workflows (updated_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
