package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"rfp-pilot/backend/pkg/models"
)

// AddKnowledge embeds and indexes one knowledge-base passage.
// (POST /api/v1/knowledge)
func (s *Server) AddKnowledge(c echo.Context) error {
	var entry models.KnowledgeEntry
	if err := c.Bind(&entry); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if entry.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	ctx := c.Request().Context()
	embedding, err := s.Embedder.Embed(ctx, entry.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to embed content: "+err.Error())
	}

	if err := s.Knowledge.Upsert(ctx, entry.Content, entry.Metadata, embedding); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to index content: "+err.Error())
	}
	return c.NoContent(http.StatusCreated)
}

// AskRequest is the payload for a one-shot question.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	Industry string `json:"industry"`
}

// AskQuestion answers a single question against the knowledge base,
// outside any workflow.
// (POST /api/v1/qa/ask)
func (s *Server) AskQuestion(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	topK := req.TopK
	if topK < 1 || topK > 20 {
		topK = s.TopK
	}

	response, err := s.Generator.Ask(c.Request().Context(), req.Question,
		models.ClientContext{Industry: req.Industry}, topK)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to answer question: "+err.Error())
	}
	return c.JSON(http.StatusOK, response)
}

// CacheStats reports question cache statistics.
// (GET /api/v1/cache/stats)
func (s *Server) CacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Cache.Stats(c.Request().Context()))
}

// ClearCache removes all cached question lists.
// (POST /api/v1/cache/clear)
func (s *Server) ClearCache(c echo.Context) error {
	removed := s.Cache.Clear(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}
