package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"rfp-pilot/backend/internal/cache"
	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/pipeline"
	"rfp-pilot/backend/internal/repository"
	"rfp-pilot/backend/internal/services"
	"rfp-pilot/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Orchestrator *pipeline.Orchestrator
	Store        repository.WorkflowStore
	Generator    *pipeline.Generator
	Cache        *cache.QuestionCache
	Knowledge    repository.KnowledgeStore
	Embedder     services.EmbeddingClient
	Logger       *logging.Logger
	TopK         int
	Version      string
}

// SubmitRequest is the payload for starting a new RFP workflow.
type SubmitRequest struct {
	RFPText         string   `json:"rfp_text"`
	ClientName      string   `json:"client_name"`
	Industry        string   `json:"industry"`
	CompanySize     string   `json:"company_size"`
	ComplianceNeeds []string `json:"compliance_needs"`
}

// SubmitRFP starts processing an RFP document and returns the workflow
// id for polling.
// (POST /api/v1/rfp)
func (s *Server) SubmitRFP(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.RFPText == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "rfp_text is required")
	}
	if req.ClientName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_name is required")
	}

	client := models.ClientContext{
		Name:            req.ClientName,
		Industry:        req.Industry,
		CompanySize:     req.CompanySize,
		ComplianceNeeds: req.ComplianceNeeds,
	}

	wf, err := s.Orchestrator.Submit(c.Request().Context(), client)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create workflow: "+err.Error())
	}

	// One goroutine per workflow; the pipeline is sequential within it.
	// The request context ends with this handler, so processing runs on
	// a detached context.
	go func() {
		if err := s.Orchestrator.Process(context.Background(), wf.ID, req.RFPText, client); err != nil {
			s.Logger.Error("workflow processing failed", "workflow_id", wf.ID, "error", err)
		}
	}()

	return c.JSON(http.StatusAccepted, wf)
}

// GetWorkflow returns the full current snapshot of one workflow; safe
// to call at any point, including mid-generation.
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	wf, err := s.Store.Get(c.Request().Context(), c.Param("id"))
	if err == repository.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, wf)
}

// ListWorkflows returns the most recently updated workflows.
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer between 1 and 100")
		}
		limit = parsed
	}

	workflows, err := s.Store.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, workflows)
}

// DownloadArtifact serves the rendered response document.
// (GET /api/v1/download/:id)
func (s *Server) DownloadArtifact(c echo.Context) error {
	wf, err := s.Store.Get(c.Request().Context(), c.Param("id"))
	if err == repository.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if wf.OutputRef == "" {
		return echo.NewHTTPError(http.StatusNotFound, "Workflow has no output document")
	}
	return c.File(wf.OutputRef)
}
