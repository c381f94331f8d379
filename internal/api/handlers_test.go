package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"rfp-pilot/backend/internal/cache"
	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/pipeline"
	"rfp-pilot/backend/internal/repository"
	"rfp-pilot/backend/internal/services"
	"rfp-pilot/backend/pkg/models"
)

type memStore struct {
	mu        sync.Mutex
	workflows map[string]*models.Workflow
}

func newMemStore() *memStore {
	return &memStore{workflows: make(map[string]*models.Workflow)}
}

func (s *memStore) Create(ctx context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *wf
	s.workflows[wf.ID] = &copied
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *wf
	return &copied, nil
}

func (s *memStore) UpdateState(ctx context.Context, id string, state models.WorkflowState) error {
	return s.mutate(id, func(wf *models.Workflow) { wf.State = state })
}

func (s *memStore) SaveClient(ctx context.Context, id string, client models.ClientContext) error {
	return s.mutate(id, func(wf *models.Workflow) { wf.Client = client })
}

func (s *memStore) SaveQuestions(ctx context.Context, id string, questions []string) error {
	return s.mutate(id, func(wf *models.Workflow) { wf.Questions = questions })
}

func (s *memStore) SaveAnswers(ctx context.Context, id string, answers []models.GeneratedAnswer) error {
	return s.mutate(id, func(wf *models.Workflow) {
		wf.Answers = append([]models.GeneratedAnswer(nil), answers...)
	})
}

func (s *memStore) SaveReview(ctx context.Context, id string, review *models.ReviewResult) error {
	return s.mutate(id, func(wf *models.Workflow) { wf.Review = review })
}

func (s *memStore) Finish(ctx context.Context, id string, state models.WorkflowState, outputRef string) error {
	return s.mutate(id, func(wf *models.Workflow) {
		wf.State = state
		wf.OutputRef = outputRef
		now := time.Now().UTC()
		wf.CompletedAt = &now
	})
}

func (s *memStore) ListRecent(ctx context.Context, limit int) ([]*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Workflow
	for _, wf := range s.workflows {
		copied := *wf
		out = append(out, &copied)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) mutate(id string, fn func(*models.Workflow)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(wf)
	return nil
}

type fakeLLM struct{}

func (fakeLLM) Complete(ctx context.Context, req services.CompletionRequest) (string, error) {
	if strings.Contains(req.Prompt, "Questions:") {
		return "1. What is your uptime SLA?", nil
	}
	return "We guarantee 99.9% uptime [Source 1].", nil
}

func (fakeLLM) CompleteStructured(ctx context.Context, req services.CompletionRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"industry": "retail", "company_size": "smb", "compliance_needs": []}`), nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeKnowledge struct {
	mu      sync.Mutex
	entries []repository.ScoredChunk
}

func (f *fakeKnowledge) Upsert(ctx context.Context, content string, metadata map[string]string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, repository.ScoredChunk{Content: content, Similarity: 0.9, Metadata: metadata})
	return nil
}

func (f *fakeKnowledge) Search(ctx context.Context, embedding []float32, k int) ([]repository.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.ScoredChunk(nil), f.entries...), nil
}

func newTestEcho(t *testing.T) (*echo.Echo, *memStore, *fakeKnowledge) {
	t.Helper()
	logger := logging.NewLogger()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	questionCache := cache.NewQuestionCache(rdb, logger)

	store := newMemStore()
	knowledge := &fakeKnowledge{entries: []repository.ScoredChunk{
		{Content: "We guarantee 99.9% uptime.", Similarity: 0.95},
		{Content: "All data is encrypted at rest.", Similarity: 0.9},
	}}

	llm := fakeLLM{}
	embedder := fakeEmbedder{}
	extractor := pipeline.NewExtractor(llm, questionCache, logger, 50)
	retriever := pipeline.NewRetriever(embedder, knowledge, logger)
	generator := pipeline.NewGenerator(llm, retriever, logger)
	reviewer := pipeline.NewReviewer(0.8, 0.5)
	orchestrator := pipeline.NewOrchestrator(
		store, llm, extractor, generator, reviewer,
		pipeline.MarkdownRenderer{}, logger, 5, t.TempDir(),
	)

	srv := &Server{
		Orchestrator: orchestrator,
		Store:        store,
		Generator:    generator,
		Cache:        questionCache,
		Knowledge:    knowledge,
		Embedder:     embedder,
		Logger:       logger,
		TopK:         5,
		Version:      "test",
	}

	e := echo.New()
	e.HTTPErrorHandler = ProblemDetailsHandler(logger)
	e.GET("/health", srv.HandleHealth)
	e.POST("/api/v1/rfp", srv.SubmitRFP)
	e.GET("/api/v1/workflows", srv.ListWorkflows)
	e.GET("/api/v1/workflows/:id", srv.GetWorkflow)
	e.GET("/api/v1/download/:id", srv.DownloadArtifact)
	e.POST("/api/v1/knowledge", srv.AddKnowledge)
	e.POST("/api/v1/qa/ask", srv.AskQuestion)
	e.GET("/api/v1/cache/stats", srv.CacheStats)
	e.POST("/api/v1/cache/clear", srv.ClearCache)

	return e, store, knowledge
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	e, _, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var health models.HealthStatus
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestSubmitRFP_Validation(t *testing.T) {
	e, _, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/rfp", `{"client_name": "Acme"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/rfp", `{"rfp_text": "What is your SLA?"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRFP_ProcessesToCompletion(t *testing.T) {
	e, store, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/rfp",
		`{"rfp_text": "Please describe your uptime SLA.", "client_name": "Acme", "industry": "retail"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var wf models.Workflow
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wf))
	assert.NotEmpty(t, wf.ID)
	assert.Equal(t, models.StateCreated, wf.State)

	assert.Eventually(t, func() bool {
		current, err := store.Get(context.Background(), wf.ID)
		return err == nil && current.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	final, err := store.Get(context.Background(), wf.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StateReady, final.State)
	assert.NotEmpty(t, final.OutputRef)
	assert.Len(t, final.Answers, len(final.Questions))
}

func TestGetWorkflow_NotFoundIsProblemJSON(t *testing.T) {
	e, _, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/workflows/WF-missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/problem+json")

	var problem models.ProblemDetails
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.Equal(t, "/api/v1/workflows/WF-missing", problem.Instance)
}

func TestListWorkflows_LimitValidation(t *testing.T) {
	e, _, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/workflows?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/workflows?limit=101", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/workflows", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAskQuestion(t *testing.T) {
	e, _, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/qa/ask", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/qa/ask", `{"question": "What is your SLA?"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var response models.QAResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "What is your SLA?", response.Question)
	assert.NotEmpty(t, response.Answer)
	assert.Greater(t, response.Confidence, 0.0)
}

func TestAddKnowledge(t *testing.T) {
	e, _, knowledge := newTestEcho(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/knowledge", `{"metadata": {"source": "x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/knowledge",
		`{"content": "Our support team operates around the clock.", "metadata": {"category": "support"}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	knowledge.mu.Lock()
	defer knowledge.mu.Unlock()
	assert.Len(t, knowledge.entries, 3)
}

func TestCacheEndpoints(t *testing.T) {
	e, _, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats models.CacheStats
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.EntryCount)

	rec = doJSON(e, http.MethodPost, "/api/v1/cache/clear", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
