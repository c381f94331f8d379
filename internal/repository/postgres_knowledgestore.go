package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresKnowledgeStore is a PostgreSQL/pgvector implementation of the
// KnowledgeStore interface.
type PostgresKnowledgeStore struct {
	db *pgxpool.Pool
}

// NewPostgresKnowledgeStore creates a new PostgresKnowledgeStore.
func NewPostgresKnowledgeStore(db *pgxpool.Pool) *PostgresKnowledgeStore {
	return &PostgresKnowledgeStore{db: db}
}

// Upsert adds one passage with its embedding and metadata. Re-inserting
// identical content replaces the stored metadata and embedding.
func (s *PostgresKnowledgeStore) Upsert(ctx context.Context, content string, metadata map[string]string, embedding []float32) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO knowledge_chunks (content, metadata, embedding)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (content) DO UPDATE SET metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
		content, meta, pgvector.NewVector(embedding))
	return err
}

// Search returns the k nearest passages by cosine distance. Distance is
// mapped onto a [0,1] similarity score. An empty index yields an empty
// slice, not an error.
func (s *PostgresKnowledgeStore) Search(ctx context.Context, embedding []float32, k int) ([]ScoredChunk, error) {
	rows, err := s.db.Query(ctx,
		`SELECT content, metadata, embedding <=> $1 AS distance
		 FROM knowledge_chunks ORDER BY distance LIMIT $2`,
		pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []ScoredChunk{}
	for rows.Next() {
		var (
			chunk    ScoredChunk
			meta     []byte
			distance float64
		)
		if err := rows.Scan(&chunk.Content, &meta, &distance); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}

		// Cosine distance ranges over [0,2]; clamp the mapped score at 0.
		chunk.Similarity = 1 - distance
		if chunk.Similarity < 0 {
			chunk.Similarity = 0
		}
		results = append(results, chunk)
	}
	return results, rows.Err()
}
