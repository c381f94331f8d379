package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"context"

	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/repository"
	"rfp-pilot/backend/internal/services"
	"rfp-pilot/backend/pkg/models"
)

// Re-ranking weights. Raw vector similarity is recombined with
// metadata-aware signals into the final ordering score.
const (
	weightSimilarity = 0.4
	weightIndustry   = 0.3
	weightRecency    = 0.2
	weightOutcome    = 0.1

	// Recency score applied when a chunk carries no last-used marker.
	staleRecencyScore = 0.5
)

// Retriever finds relevant knowledge-base passages for a query and
// re-ranks them with metadata-aware heuristics.
type Retriever struct {
	embedder services.EmbeddingClient
	store    repository.KnowledgeStore
	logger   *logging.Logger
}

// NewRetriever creates a new Retriever.
func NewRetriever(embedder services.EmbeddingClient, store repository.KnowledgeStore, logger *logging.Logger) *Retriever {
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Search returns the topK best passages for a query, re-ranked against
// the client context. An empty index yields an empty slice.
func (r *Retriever) Search(ctx context.Context, query string, client models.ClientContext, topK int) ([]models.RetrievedChunk, error) {
	embedding, err := r.embedder.Embed(ctx, enrichQuery(query, client))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := r.store.Search(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(candidates))
	for _, cand := range candidates {
		chunk := models.RetrievedChunk{
			Text:     cand.Content,
			Score:    cand.Similarity,
			Metadata: cand.Metadata,
		}
		chunk.FinalScore = rerankScore(chunk, client)
		chunk.Reason = retrievalReason(chunk, client)
		chunks = append(chunks, chunk)
	}

	// Stable: ties keep their original similarity order.
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].FinalScore > chunks[j].FinalScore
	})

	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks, nil
}

// enrichQuery folds the client context into the query text so the
// embedding reflects who is asking.
func enrichQuery(query string, client models.ClientContext) string {
	parts := []string{query}
	if client.Industry != "" {
		parts = append(parts, "Industry: "+client.Industry)
	}
	if client.CompanySize != "" {
		parts = append(parts, "Company size: "+client.CompanySize)
	}
	if len(client.ComplianceNeeds) > 0 {
		parts = append(parts, "Compliance: "+strings.Join(client.ComplianceNeeds, ", "))
	}
	return strings.Join(parts, " | ")
}

// rerankScore combines semantic similarity with metadata signals from
// the candidate itself.
func rerankScore(chunk models.RetrievedChunk, client models.ClientContext) float64 {
	industryMatch := 0.0
	if client.Industry != "" && chunk.Metadata[models.MetaIndustry] == client.Industry {
		industryMatch = 1.0
	}

	recency := staleRecencyScore
	if chunk.Metadata[models.MetaLastUsed] != "" {
		recency = 1.0
	}

	outcome := 0.0
	if chunk.Metadata[models.MetaWinOutcome] != "" {
		outcome = 1.0
	}

	return weightSimilarity*chunk.Score +
		weightIndustry*industryMatch +
		weightRecency*recency +
		weightOutcome*outcome
}

// retrievalReason explains why a chunk was retrieved, for reviewers.
func retrievalReason(chunk models.RetrievedChunk, client models.ClientContext) string {
	var reasons []string

	switch {
	case chunk.Score > 0.9:
		reasons = append(reasons, "Very high semantic similarity")
	case chunk.Score > 0.8:
		reasons = append(reasons, "High semantic similarity")
	}
	if client.Industry != "" && chunk.Metadata[models.MetaIndustry] == client.Industry {
		reasons = append(reasons, "Same industry")
	}
	if chunk.Metadata[models.MetaWinOutcome] != "" {
		reasons = append(reasons, "From winning proposal")
	}

	if len(reasons) == 0 {
		return "Relevant content"
	}
	return strings.Join(reasons, ", ")
}
