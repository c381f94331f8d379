// Package mcp exposes the answer pipeline as Model Context Protocol
// tools so LLM agents can submit RFPs and query the knowledge base.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/pipeline"
	"rfp-pilot/backend/internal/repository"
	"rfp-pilot/backend/pkg/models"
)

type Server struct {
	mcpServer    *server.MCPServer
	orchestrator *pipeline.Orchestrator
	generator    *pipeline.Generator
	store        repository.WorkflowStore
	logger       *logging.Logger
	topK         int
}

func NewServer(orchestrator *pipeline.Orchestrator, generator *pipeline.Generator,
	store repository.WorkflowStore, logger *logging.Logger, topK int) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"RFP Pilot",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		orchestrator: orchestrator,
		generator:    generator,
		store:        store,
		logger:       logger,
		topK:         topK,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"ask_question",
			mcp.WithDescription("Answer a single question from the proposal knowledge base"),
			mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
			mcp.WithString("industry", mcp.Description("Client industry used for retrieval ranking")),
		),
		s.handleAskQuestion,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_rfp",
			mcp.WithDescription("Submit an RFP document for asynchronous processing"),
			mcp.WithString("rfp_text", mcp.Required(), mcp.Description("Full text of the RFP document")),
			mcp.WithString("client_name", mcp.Required(), mcp.Description("Name of the client issuing the RFP")),
			mcp.WithString("industry", mcp.Description("Client industry, if known")),
		),
		s.handleSubmitRFP,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"workflow_status",
			mcp.WithDescription("Get the current state and results of an RFP workflow"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The workflow ID")),
		),
		s.handleWorkflowStatus,
	)
}

func (s *Server) handleAskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	question, ok := args["question"].(string)
	if !ok || question == "" {
		return mcp.NewToolResultError("Missing required parameter: question"), nil
	}
	industry, _ := args["industry"].(string)

	response, err := s.generator.Ask(ctx, question, models.ClientContext{Industry: industry}, s.topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to answer question: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(response)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleSubmitRFP(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	rfpText, ok := args["rfp_text"].(string)
	if !ok || rfpText == "" {
		return mcp.NewToolResultError("Missing required parameter: rfp_text"), nil
	}
	clientName, ok := args["client_name"].(string)
	if !ok || clientName == "" {
		return mcp.NewToolResultError("Missing required parameter: client_name"), nil
	}
	industry, _ := args["industry"].(string)

	client := models.ClientContext{Name: clientName, Industry: industry}
	wf, err := s.orchestrator.Submit(ctx, client)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create workflow: %v", err)), nil
	}

	// Processing outlives the tool call, so it runs on a detached context.
	go func() {
		if err := s.orchestrator.Process(context.Background(), wf.ID, rfpText, client); err != nil {
			s.logger.Error("workflow processing failed", "workflow_id", wf.ID, "error", err)
		}
	}()

	jsonBytes, _ := json.Marshal(wf)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleWorkflowStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	wf, err := s.store.Get(ctx, id)
	if err == repository.ErrNotFound {
		return mcp.NewToolResultError(fmt.Sprintf("Workflow %s not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load workflow: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(wf)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// HTTPHandler returns an http.Handler serving the MCP endpoints under
// basePath (/mcp, /mcp/sse, /mcp/message).
func (s *Server) HTTPHandler(basePath string) http.Handler {
	return server.NewSSEServer(s.mcpServer, server.WithStaticBasePath(basePath))
}
