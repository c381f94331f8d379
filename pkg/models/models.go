// Package models defines the domain models for the RFP answer pipeline.
package models

import (
	"time"
)

// KnowledgeEntry is one passage of knowledge-base content with its
// provenance metadata, as submitted for indexing.
type KnowledgeEntry struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Well-known knowledge metadata keys consulted during re-ranking.
const (
	MetaSource     = "source"
	MetaSection    = "section"
	MetaCategory   = "category"
	MetaIndustry   = "industry"
	MetaLastUsed   = "last_used"
	MetaWinOutcome = "win_outcome"
)

// QAResponse is a one-shot retrieval-augmented answer outside any workflow.
type QAResponse struct {
	Question    string           `json:"question"`
	Answer      string           `json:"answer"`
	Sources     []RetrievedChunk `json:"sources"`
	Confidence  float64          `json:"confidence"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// CacheStats summarizes the question cache contents.
type CacheStats struct {
	EntryCount     int   `json:"entry_count"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// HealthStatus represents service health.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProblemDetails represents an RFC 7807 Problem Details response.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
