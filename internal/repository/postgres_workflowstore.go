package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rfp-pilot/backend/pkg/models"
)

// PostgresWorkflowStore is a PostgreSQL implementation of WorkflowStore.
// Questions, answers and review are stored as JSONB documents since each
// is always read and written as a whole unit per pipeline step.
type PostgresWorkflowStore struct {
	db *pgxpool.Pool
}

// NewPostgresWorkflowStore creates a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *pgxpool.Pool) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

// Create persists a new workflow in its initial state.
func (s *PostgresWorkflowStore) Create(ctx context.Context, wf *models.Workflow) error {
	client, err := json.Marshal(wf.Client)
	if err != nil {
		return fmt.Errorf("failed to encode client context: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO workflows (id, state, client, questions, answers, created_at, updated_at)
		 VALUES ($1, $2, $3, '[]', '[]', $4, $4)`,
		wf.ID, wf.State, client, wf.CreatedAt)
	return err
}

// Get returns the full current snapshot of a workflow.
func (s *PostgresWorkflowStore) Get(ctx context.Context, id string) (*models.Workflow, error) {
	var (
		wf          models.Workflow
		client      []byte
		questions   []byte
		answers     []byte
		review      []byte
		outputRef   *string
		completedAt *time.Time
	)

	err := s.db.QueryRow(ctx,
		`SELECT id, state, client, questions, answers, review, output_ref, created_at, updated_at, completed_at
		 FROM workflows WHERE id = $1`, id).
		Scan(&wf.ID, &wf.State, &client, &questions, &answers, &review, &outputRef, &wf.CreatedAt, &wf.UpdatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(client, &wf.Client); err != nil {
		return nil, fmt.Errorf("failed to decode client context: %w", err)
	}
	if err := json.Unmarshal(questions, &wf.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	if err := json.Unmarshal(answers, &wf.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	if len(review) > 0 {
		wf.Review = &models.ReviewResult{}
		if err := json.Unmarshal(review, wf.Review); err != nil {
			return nil, fmt.Errorf("failed to decode review: %w", err)
		}
	}
	if outputRef != nil {
		wf.OutputRef = *outputRef
	}
	wf.CompletedAt = completedAt

	return &wf, nil
}

// UpdateState advances the workflow state.
func (s *PostgresWorkflowStore) UpdateState(ctx context.Context, id string, state models.WorkflowState) error {
	return s.exec(ctx, id,
		`UPDATE workflows SET state = $2, updated_at = now() WHERE id = $1`, state)
}

// SaveClient replaces the workflow's client context.
func (s *PostgresWorkflowStore) SaveClient(ctx context.Context, id string, client models.ClientContext) error {
	raw, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("failed to encode client context: %w", err)
	}
	return s.exec(ctx, id,
		`UPDATE workflows SET client = $2, updated_at = now() WHERE id = $1`, raw)
}

// SaveQuestions stores the extracted question list.
func (s *PostgresWorkflowStore) SaveQuestions(ctx context.Context, id string, questions []string) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}
	return s.exec(ctx, id,
		`UPDATE workflows SET questions = $2, updated_at = now() WHERE id = $1`, raw)
}

// SaveAnswers replaces the full answers sequence atomically.
func (s *PostgresWorkflowStore) SaveAnswers(ctx context.Context, id string, answers []models.GeneratedAnswer) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	return s.exec(ctx, id,
		`UPDATE workflows SET answers = $2, updated_at = now() WHERE id = $1`, raw)
}

// SaveReview stores the review result.
func (s *PostgresWorkflowStore) SaveReview(ctx context.Context, id string, review *models.ReviewResult) error {
	raw, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("failed to encode review: %w", err)
	}
	return s.exec(ctx, id,
		`UPDATE workflows SET review = $2, updated_at = now() WHERE id = $1`, raw)
}

// Finish moves the workflow to a terminal state.
func (s *PostgresWorkflowStore) Finish(ctx context.Context, id string, state models.WorkflowState, outputRef string) error {
	var ref *string
	if outputRef != "" {
		ref = &outputRef
	}
	return s.exec(ctx, id,
		`UPDATE workflows SET state = $2, output_ref = $3, completed_at = now(), updated_at = now() WHERE id = $1`,
		state, ref)
}

// ListRecent returns the most recently updated workflows.
func (s *PostgresWorkflowStore) ListRecent(ctx context.Context, limit int) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM workflows ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))
	for _, id := range ids {
		wf, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

func (s *PostgresWorkflowStore) exec(ctx context.Context, id, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
