package repository

import (
	"context"
	"errors"

	"rfp-pilot/backend/pkg/models"
)

// ErrNotFound is returned when a workflow does not exist.
var ErrNotFound = errors.New("workflow not found")

// WorkflowStore is the durable record of workflow progress. Every write
// replaces the targeted field as a whole unit, so pollers reading through
// Get never observe a torn snapshot.
type WorkflowStore interface {
	// Create persists a new workflow in its initial state.
	Create(ctx context.Context, wf *models.Workflow) error
	// Get returns the full current snapshot of a workflow.
	Get(ctx context.Context, id string) (*models.Workflow, error)
	// UpdateState advances the workflow state.
	UpdateState(ctx context.Context, id string, state models.WorkflowState) error
	// SaveClient replaces the workflow's client context, used when
	// analysis enriches the submitted metadata.
	SaveClient(ctx context.Context, id string, client models.ClientContext) error
	// SaveQuestions stores the extracted question list.
	SaveQuestions(ctx context.Context, id string, questions []string) error
	// SaveAnswers replaces the full answers sequence.
	SaveAnswers(ctx context.Context, id string, answers []models.GeneratedAnswer) error
	// SaveReview stores the review result.
	SaveReview(ctx context.Context, id string, review *models.ReviewResult) error
	// Finish moves the workflow to a terminal state, recording the output
	// artifact reference when one was produced.
	Finish(ctx context.Context, id string, state models.WorkflowState, outputRef string) error
	// ListRecent returns the most recently updated workflows.
	ListRecent(ctx context.Context, limit int) ([]*models.Workflow, error)
}

// ScoredChunk is a raw vector search candidate before re-ranking.
type ScoredChunk struct {
	Content    string
	Similarity float64
	Metadata   map[string]string
}

// KnowledgeStore is the vector index over past proposal content.
type KnowledgeStore interface {
	// Upsert adds one passage with its embedding and metadata.
	Upsert(ctx context.Context, content string, metadata map[string]string, embedding []float32) error
	// Search returns the k nearest passages. An empty index yields an
	// empty slice, not an error.
	Search(ctx context.Context, embedding []float32, k int) ([]ScoredChunk, error)
}
