package pipeline

import (
	"strings"
	"time"

	"rfp-pilot/backend/pkg/models"
)

// Reviewer aggregates per-answer confidence into a batch-level
// readiness verdict and issue list.
type Reviewer struct {
	highThreshold   float64
	mediumThreshold float64
}

// NewReviewer creates a Reviewer with the given confidence thresholds.
// Zero values fall back to the defaults (high 0.8, medium 0.5).
func NewReviewer(highThreshold, mediumThreshold float64) *Reviewer {
	if highThreshold <= 0 {
		highThreshold = 0.8
	}
	if mediumThreshold <= 0 {
		mediumThreshold = 0.5
	}
	return &Reviewer{highThreshold: highThreshold, mediumThreshold: mediumThreshold}
}

// Review buckets answers by confidence, computes the weighted
// completeness score and derives the readiness verdict. More than 30%
// of answers in the low bucket forces needs_review, overriding the
// completeness-derived outcome.
func (r *Reviewer) Review(answers []models.GeneratedAnswer) *models.ReviewResult {
	result := &models.ReviewResult{
		Issues:     []models.ReviewIssue{},
		ReviewedAt: time.Now().UTC(),
	}
	if len(answers) == 0 {
		result.OverallQuality = "low"
		result.Readiness = models.ReadinessNotReady
		return result
	}

	for i, answer := range answers {
		switch {
		case answer.Confidence >= r.highThreshold:
			result.HighConfidence++
		case answer.Confidence >= r.mediumThreshold:
			result.MediumConfidence++
		default:
			result.LowConfidence++
			result.Issues = append(result.Issues, models.ReviewIssue{
				QuestionIndex: i,
				Question:      answer.Question,
				Issue:         "Low confidence answer - may need manual review",
				Severity:      "warning",
			})
		}

		if strings.Contains(answer.Answer, "[Error]") {
			result.Issues = append(result.Issues, models.ReviewIssue{
				QuestionIndex: i,
				Question:      answer.Question,
				Issue:         "Contains placeholder or error text",
				Severity:      "error",
			})
		}
	}

	total := float64(len(answers))
	result.CompletenessScore = (float64(result.HighConfidence)*1.0 +
		float64(result.MediumConfidence)*0.7 +
		float64(result.LowConfidence)*0.3) / total

	switch {
	case result.CompletenessScore >= 0.8:
		result.OverallQuality = "high"
	case result.CompletenessScore >= 0.6:
		result.OverallQuality = "medium"
	default:
		result.OverallQuality = "low"
	}

	result.Readiness = r.readiness(result, len(answers))
	return result
}

func (r *Reviewer) readiness(result *models.ReviewResult, total int) models.Readiness {
	hasErrors := false
	hasWarnings := false
	for _, issue := range result.Issues {
		switch issue.Severity {
		case "error":
			hasErrors = true
		case "warning":
			hasWarnings = true
		}
	}

	verdict := models.ReadinessReady
	switch {
	case hasErrors:
		verdict = models.ReadinessNotReady
	case hasWarnings:
		verdict = models.ReadinessReadyWithReview
	}

	// The low-bucket override takes precedence over everything above.
	if float64(result.LowConfidence) > float64(total)*0.3 {
		verdict = models.ReadinessNeedsReview
	}
	return verdict
}
