package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/repository"
	"rfp-pilot/backend/pkg/models"
)

// fakeEmbedder satisfies services.EmbeddingClient.
type fakeEmbedder struct {
	lastText string
	calls    int
	failOn   int // 1-based call index that fails, 0 disables
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastText = text
	if f.failOn > 0 && f.calls == f.failOn {
		return nil, errors.New("embedding sidecar unavailable")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeKnowledgeStore satisfies repository.KnowledgeStore with preset
// candidates.
type fakeKnowledgeStore struct {
	chunks []repository.ScoredChunk
	err    error
}

func (f *fakeKnowledgeStore) Upsert(ctx context.Context, content string, metadata map[string]string, embedding []float32) error {
	return nil
}

func (f *fakeKnowledgeStore) Search(ctx context.Context, embedding []float32, k int) ([]repository.ScoredChunk, error) {
	return f.chunks, f.err
}

func TestRetriever_RerankFavorsMetadataMatches(t *testing.T) {
	store := &fakeKnowledgeStore{chunks: []repository.ScoredChunk{
		{Content: "plain but similar", Similarity: 1.0},
		{Content: "healthcare winner", Similarity: 0.9, Metadata: map[string]string{
			models.MetaIndustry:   "healthcare",
			models.MetaLastUsed:   "2026-07-01",
			models.MetaWinOutcome: "won",
		}},
	}}
	retriever := NewRetriever(&fakeEmbedder{}, store, logging.NewLogger())

	client := models.ClientContext{Industry: "healthcare"}
	chunks, err := retriever.Search(context.Background(), "What certifications do you hold?", client, 5)
	assert.NoError(t, err)
	assert.Len(t, chunks, 2)

	// 0.4*0.9 + 0.3 + 0.2 + 0.1 beats 0.4*1.0 + 0.2*0.5
	assert.Equal(t, "healthcare winner", chunks[0].Text)
	assert.InDelta(t, 0.96, chunks[0].FinalScore, 1e-9)
	assert.Equal(t, "plain but similar", chunks[1].Text)
	assert.InDelta(t, 0.5, chunks[1].FinalScore, 1e-9)
}

func TestRetriever_TiesKeepSimilarityOrder(t *testing.T) {
	store := &fakeKnowledgeStore{chunks: []repository.ScoredChunk{
		{Content: "first", Similarity: 0.8},
		{Content: "second", Similarity: 0.8},
		{Content: "third", Similarity: 0.8},
	}}
	retriever := NewRetriever(&fakeEmbedder{}, store, logging.NewLogger())

	chunks, err := retriever.Search(context.Background(), "q", models.ClientContext{}, 5)
	assert.NoError(t, err)
	assert.Equal(t, "first", chunks[0].Text)
	assert.Equal(t, "second", chunks[1].Text)
	assert.Equal(t, "third", chunks[2].Text)
}

func TestRetriever_EmptyIndexReturnsEmptySlice(t *testing.T) {
	retriever := NewRetriever(&fakeEmbedder{}, &fakeKnowledgeStore{}, logging.NewLogger())

	chunks, err := retriever.Search(context.Background(), "q", models.ClientContext{}, 5)
	assert.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}

func TestRetriever_QueryEnrichedWithClientContext(t *testing.T) {
	embedder := &fakeEmbedder{}
	retriever := NewRetriever(embedder, &fakeKnowledgeStore{}, logging.NewLogger())

	client := models.ClientContext{
		Industry:        "finance",
		CompanySize:     "enterprise",
		ComplianceNeeds: []string{"SOC2", "PCI"},
	}
	_, err := retriever.Search(context.Background(), "How is data encrypted?", client, 5)
	assert.NoError(t, err)
	assert.Contains(t, embedder.lastText, "How is data encrypted?")
	assert.Contains(t, embedder.lastText, "Industry: finance")
	assert.Contains(t, embedder.lastText, "Company size: enterprise")
	assert.Contains(t, embedder.lastText, "Compliance: SOC2, PCI")
}

func TestRetriever_TruncatesToTopK(t *testing.T) {
	store := &fakeKnowledgeStore{chunks: []repository.ScoredChunk{
		{Content: "a", Similarity: 0.9},
		{Content: "b", Similarity: 0.8},
		{Content: "c", Similarity: 0.7},
	}}
	retriever := NewRetriever(&fakeEmbedder{}, store, logging.NewLogger())

	chunks, err := retriever.Search(context.Background(), "q", models.ClientContext{}, 2)
	assert.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestRetriever_EmbeddingFailureSurfaces(t *testing.T) {
	retriever := NewRetriever(&fakeEmbedder{failOn: 1}, &fakeKnowledgeStore{}, logging.NewLogger())

	_, err := retriever.Search(context.Background(), "q", models.ClientContext{}, 5)
	assert.Error(t, err)
}
