package models

import (
	"time"
)

// WorkflowState represents the processing stage of an RFP workflow.
// States advance strictly forward; "error" is reachable from any
// non-terminal state and "human_review" only from "reviewing".
type WorkflowState string

const (
	StateCreated     WorkflowState = "created"
	StateAnalyzing   WorkflowState = "analyzing"
	StateRouting     WorkflowState = "routing"
	StateGenerating  WorkflowState = "generating"
	StateReviewing   WorkflowState = "reviewing"
	StateHumanReview WorkflowState = "human_review"
	StateFormatting  WorkflowState = "formatting"
	StateReady       WorkflowState = "ready"
	StateError       WorkflowState = "error"
)

// Terminal reports whether no further transitions are possible.
func (s WorkflowState) Terminal() bool {
	return s == StateReady || s == StateError || s == StateHumanReview
}

// Readiness is the reviewer's verdict on whether a generated answer set
// can be released without manual sign-off.
type Readiness string

const (
	ReadinessReady           Readiness = "ready"
	ReadinessReadyWithReview Readiness = "ready_with_review"
	ReadinessNeedsReview     Readiness = "needs_review"
	ReadinessNotReady        Readiness = "not_ready"
)

// ClientContext carries what is known about the requesting client. The
// fixed fields cover the hot paths (re-ranking, prompt building); Extra
// holds forward-compatible attributes.
type ClientContext struct {
	Name            string            `json:"name"`
	Industry        string            `json:"industry,omitempty"`
	CompanySize     string            `json:"company_size,omitempty"`
	ComplianceNeeds []string          `json:"compliance_needs,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// RetrievedChunk is one knowledge-base passage used as answer evidence.
type RetrievedChunk struct {
	Text       string            `json:"text"`
	Score      float64           `json:"score"`
	FinalScore float64           `json:"final_score"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// GeneratedAnswer is the answer produced for a single extracted question.
type GeneratedAnswer struct {
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	Sources    []RetrievedChunk `json:"sources"`
	Confidence float64          `json:"confidence"`
}

// ReviewIssue flags a single answer for attention.
type ReviewIssue struct {
	QuestionIndex int    `json:"question_index"`
	Question      string `json:"question"`
	Issue         string `json:"issue"`
	Severity      string `json:"severity"`
}

// ReviewResult is the batch-level quality verdict over all answers.
type ReviewResult struct {
	OverallQuality    string        `json:"overall_quality"`
	CompletenessScore float64       `json:"completeness_score"`
	HighConfidence    int           `json:"high_confidence_count"`
	MediumConfidence  int           `json:"medium_confidence_count"`
	LowConfidence     int           `json:"low_confidence_count"`
	Issues            []ReviewIssue `json:"issues_found"`
	Readiness         Readiness     `json:"overall_readiness"`
	ReviewedAt        time.Time     `json:"reviewed_at"`
}

// Workflow is one end-to-end RFP processing instance. Questions and
// answers are always read and written as whole units; the answers
// sequence grows monotonically and never exceeds the questions sequence.
type Workflow struct {
	ID          string            `json:"workflow_id"`
	State       WorkflowState     `json:"state"`
	Client      ClientContext     `json:"client"`
	Questions   []string          `json:"questions"`
	Answers     []GeneratedAnswer `json:"answers"`
	Review      *ReviewResult     `json:"review,omitempty"`
	OutputRef   string            `json:"output_ref,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}
