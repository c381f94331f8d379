package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/repository"
	"rfp-pilot/backend/internal/services"
	"rfp-pilot/backend/pkg/models"
)

// ErrInvalidTransition is returned when a state change would skip ahead
// or move backwards in the workflow state machine.
var ErrInvalidTransition = errors.New("invalid workflow state transition")

// nextState holds the single legal forward transition out of each
// non-branching state. Branches (human_review, error) are handled
// explicitly in Process.
var nextState = map[models.WorkflowState]models.WorkflowState{
	models.StateCreated:    models.StateAnalyzing,
	models.StateAnalyzing:  models.StateRouting,
	models.StateRouting:    models.StateGenerating,
	models.StateGenerating: models.StateReviewing,
	models.StateReviewing:  models.StateFormatting,
	models.StateFormatting: models.StateReady,
}

// CanTransition reports whether moving from one state to another is
// legal under the pipeline state machine.
func CanTransition(from, to models.WorkflowState) bool {
	if to == models.StateError {
		return !from.Terminal()
	}
	if to == models.StateHumanReview {
		return from == models.StateReviewing
	}
	return nextState[from] == to
}

// Orchestrator sequences the pipeline steps for a workflow, persisting
// progress at every step boundary and isolating per-question failures.
// All collaborators are injected at construction time.
type Orchestrator struct {
	store     repository.WorkflowStore
	llm       services.LLMClient
	extractor *Extractor
	generator *Generator
	reviewer  *Reviewer
	renderer  Renderer
	logger    *logging.Logger

	topK      int
	outputDir string
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	store repository.WorkflowStore,
	llm services.LLMClient,
	extractor *Extractor,
	generator *Generator,
	reviewer *Reviewer,
	renderer Renderer,
	logger *logging.Logger,
	topK int,
	outputDir string,
) *Orchestrator {
	if topK <= 0 {
		topK = 5
	}
	return &Orchestrator{
		store:     store,
		llm:       llm,
		extractor: extractor,
		generator: generator,
		reviewer:  reviewer,
		renderer:  renderer,
		logger:    logger,
		topK:      topK,
		outputDir: outputDir,
	}
}

// Submit registers a new workflow in the created state and returns it.
// Processing is started separately, typically on its own goroutine.
func (o *Orchestrator) Submit(ctx context.Context, client models.ClientContext) (*models.Workflow, error) {
	wf := &models.Workflow{
		ID:        "WF-" + uuid.NewString(),
		State:     models.StateCreated,
		Client:    client,
		CreatedAt: time.Now().UTC(),
	}
	wf.UpdatedAt = wf.CreatedAt

	if err := o.store.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	return wf, nil
}

// Process runs a submitted workflow through the full state machine.
// Within the generating step each question is isolated: a failure there
// yields a zero-confidence placeholder and the batch continues. Any
// failure outside that boundary moves the workflow to the error state
// and is returned. A formatting failure still completes the workflow,
// without an output reference, and is returned for the caller to report.
func (o *Orchestrator) Process(ctx context.Context, workflowID, rfpText string, client models.ClientContext) error {
	state := models.StateCreated

	// Step 1: analyze. Enrich the client context when the caller gave no
	// industry signal, then extract questions.
	if err := o.advance(ctx, workflowID, &state, models.StateAnalyzing); err != nil {
		return o.fail(workflowID, state, err)
	}
	if client.Industry == "" {
		enriched, err := services.ExtractClientContext(ctx, o.llm, rfpText, client.Name)
		if err != nil {
			// Enrichment is best-effort; the submitted context still works.
			o.logger.Warn("client metadata extraction failed", "workflow_id", workflowID, "error", err)
		} else {
			client.Industry = enriched.Industry
			client.CompanySize = enriched.CompanySize
			if len(client.ComplianceNeeds) == 0 {
				client.ComplianceNeeds = enriched.ComplianceNeeds
			}
			if err := o.store.SaveClient(ctx, workflowID, client); err != nil {
				return o.fail(workflowID, state, err)
			}
		}
	}
	questions, err := o.extractor.Extract(ctx, rfpText)
	if err != nil {
		return o.fail(workflowID, state, err)
	}
	if err := o.store.SaveQuestions(ctx, workflowID, questions); err != nil {
		return o.fail(workflowID, state, err)
	}
	o.logger.Info("questions extracted", "workflow_id", workflowID, "count", len(questions))

	// Step 2: routing. No dispatch policy yet, but the state is still
	// persisted so pollers can observe it.
	if err := o.advance(ctx, workflowID, &state, models.StateRouting); err != nil {
		return o.fail(workflowID, state, err)
	}

	// Step 3: generate answers, persisting after every single item.
	if err := o.advance(ctx, workflowID, &state, models.StateGenerating); err != nil {
		return o.fail(workflowID, state, err)
	}
	answers := make([]models.GeneratedAnswer, 0, len(questions))
	for i, question := range questions {
		if err := ctx.Err(); err != nil {
			return o.fail(workflowID, state, err)
		}

		answer, err := o.generator.Answer(ctx, question, client, o.topK)
		if err != nil {
			o.logger.Error("answer failed, inserting placeholder",
				"workflow_id", workflowID, "question_index", i, "error", err)
			answer = models.GeneratedAnswer{
				Question:   question,
				Answer:     ErrorMarkerAnswer,
				Sources:    []models.RetrievedChunk{},
				Confidence: 0.0,
			}
		}
		answers = append(answers, answer)

		if err := o.store.SaveAnswers(ctx, workflowID, answers); err != nil {
			return o.fail(workflowID, state, err)
		}
	}
	o.logger.Info("answers generated", "workflow_id", workflowID, "count", len(answers))

	// Step 4: quality review.
	if err := o.advance(ctx, workflowID, &state, models.StateReviewing); err != nil {
		return o.fail(workflowID, state, err)
	}
	review := o.reviewer.Review(answers)
	if err := o.store.SaveReview(ctx, workflowID, review); err != nil {
		return o.fail(workflowID, state, err)
	}
	o.logger.Info("review complete", "workflow_id", workflowID,
		"quality", review.OverallQuality, "readiness", review.Readiness)

	if review.Readiness == models.ReadinessNeedsReview {
		if err := o.store.Finish(ctx, workflowID, models.StateHumanReview, ""); err != nil {
			return o.fail(workflowID, state, err)
		}
		return nil
	}

	// Step 5: format the output document.
	if err := o.advance(ctx, workflowID, &state, models.StateFormatting); err != nil {
		return o.fail(workflowID, state, err)
	}
	outputRef, renderErr := o.renderer.Render(answers, client.Name, o.outputDir)
	if renderErr != nil {
		// The workflow still completes so pollers stop waiting; the
		// failure is reported to the caller rather than swallowed.
		o.logger.Error("formatting failed", "workflow_id", workflowID, "error", renderErr)
		if err := o.store.Finish(ctx, workflowID, models.StateReady, ""); err != nil {
			return o.fail(workflowID, state, err)
		}
		return fmt.Errorf("formatting failed: %w", renderErr)
	}

	if err := o.store.Finish(ctx, workflowID, models.StateReady, outputRef); err != nil {
		return o.fail(workflowID, state, err)
	}
	o.logger.Info("workflow ready", "workflow_id", workflowID, "output_ref", outputRef)
	return nil
}

// advance validates and persists a state transition.
func (o *Orchestrator) advance(ctx context.Context, workflowID string, state *models.WorkflowState, to models.WorkflowState) error {
	if !CanTransition(*state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, *state, to)
	}
	if err := o.store.UpdateState(ctx, workflowID, to); err != nil {
		return err
	}
	*state = to
	o.logger.Debug("state transition", "workflow_id", workflowID, "state", to)
	return nil
}

// fail moves the workflow to the error state and returns the original
// error. The state write uses a fresh context so a cancelled pipeline
// context cannot prevent the terminal state from being recorded.
func (o *Orchestrator) fail(workflowID string, from models.WorkflowState, cause error) error {
	if CanTransition(from, models.StateError) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.store.Finish(ctx, workflowID, models.StateError, ""); err != nil {
			o.logger.Error("failed to record error state", "workflow_id", workflowID, "error", err)
		}
	}
	o.logger.Error("workflow failed", "workflow_id", workflowID, "error", cause)
	return cause
}
