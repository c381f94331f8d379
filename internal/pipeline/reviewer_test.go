package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rfp-pilot/backend/pkg/models"
)

func answersWithConfidences(confidences ...float64) []models.GeneratedAnswer {
	answers := make([]models.GeneratedAnswer, len(confidences))
	for i, c := range confidences {
		answers[i] = models.GeneratedAnswer{
			Question:   "question",
			Answer:     "answer",
			Confidence: c,
		}
	}
	return answers
}

func TestReviewer_CompletenessScore(t *testing.T) {
	reviewer := NewReviewer(0.8, 0.5)

	// 6 high, 3 medium, 1 low out of 10.
	answers := answersWithConfidences(
		0.9, 0.85, 0.8, 0.95, 0.88, 0.82,
		0.7, 0.6, 0.5,
		0.2,
	)
	result := reviewer.Review(answers)

	assert.Equal(t, 6, result.HighConfidence)
	assert.Equal(t, 3, result.MediumConfidence)
	assert.Equal(t, 1, result.LowConfidence)
	// (6*1.0 + 3*0.7 + 1*0.3) / 10
	assert.InDelta(t, 0.84, result.CompletenessScore, 1e-9)
	assert.Equal(t, "high", result.OverallQuality)
	assert.Equal(t, models.ReadinessReadyWithReview, result.Readiness)
	assert.Len(t, result.Issues, 1)
	assert.Equal(t, 9, result.Issues[0].QuestionIndex)
	assert.Equal(t, "warning", result.Issues[0].Severity)
}

func TestReviewer_AllHighIsReady(t *testing.T) {
	reviewer := NewReviewer(0.8, 0.5)

	result := reviewer.Review(answersWithConfidences(0.9, 0.85, 0.95))
	assert.InDelta(t, 1.0, result.CompletenessScore, 1e-9)
	assert.Equal(t, models.ReadinessReady, result.Readiness)
	assert.Empty(t, result.Issues)
}

func TestReviewer_LowBucketOverride(t *testing.T) {
	reviewer := NewReviewer(0.8, 0.5)

	// 2 of 4 answers low: 50% > 30% forces needs_review.
	result := reviewer.Review(answersWithConfidences(0.9, 0.9, 0.1, 0.2))
	assert.Equal(t, 2, result.LowConfidence)
	assert.Equal(t, models.ReadinessNeedsReview, result.Readiness)
}

func TestReviewer_LowBucketBoundaryNotTriggered(t *testing.T) {
	reviewer := NewReviewer(0.8, 0.5)

	// Exactly 30% low does not trigger the override.
	result := reviewer.Review(answersWithConfidences(
		0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9,
		0.1, 0.1, 0.1,
	))
	assert.Equal(t, 3, result.LowConfidence)
	assert.Equal(t, models.ReadinessReadyWithReview, result.Readiness)
}

func TestReviewer_ErrorMarkerIsNotReady(t *testing.T) {
	reviewer := NewReviewer(0.8, 0.5)

	answers := answersWithConfidences(0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9)
	answers = append(answers, models.GeneratedAnswer{
		Question:   "failed question",
		Answer:     ErrorMarkerAnswer,
		Confidence: 0.0,
	})

	result := reviewer.Review(answers)
	assert.Equal(t, models.ReadinessNotReady, result.Readiness)

	var severities []string
	for _, issue := range result.Issues {
		severities = append(severities, issue.Severity)
	}
	assert.Contains(t, severities, "error")
}

func TestReviewer_EmptyBatch(t *testing.T) {
	reviewer := NewReviewer(0.8, 0.5)

	result := reviewer.Review(nil)
	assert.Equal(t, "low", result.OverallQuality)
	assert.Equal(t, models.ReadinessNotReady, result.Readiness)
	assert.Empty(t, result.Issues)
}

func TestReviewer_CustomThresholds(t *testing.T) {
	reviewer := NewReviewer(0.9, 0.7)

	result := reviewer.Review(answersWithConfidences(0.85, 0.75, 0.65))
	assert.Equal(t, 0, result.HighConfidence)
	assert.Equal(t, 2, result.MediumConfidence)
	assert.Equal(t, 1, result.LowConfidence)
}

func TestReviewer_ZeroThresholdsUseDefaults(t *testing.T) {
	reviewer := NewReviewer(0, 0)

	result := reviewer.Review(answersWithConfidences(0.85, 0.6, 0.4))
	assert.Equal(t, 1, result.HighConfidence)
	assert.Equal(t, 1, result.MediumConfidence)
	assert.Equal(t, 1, result.LowConfidence)
}
