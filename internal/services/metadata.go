package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rfp-pilot/backend/pkg/models"
)

const metadataSystemPrompt = "You analyze RFP documents and extract structured facts about the requesting client."

// ExtractClientContext asks the model for structured client metadata from
// the opening of an RFP document. A parse failure falls back to a
// heuristic scan so callers always receive a usable context.
func ExtractClientContext(ctx context.Context, llm LLMClient, documentText, clientName string) (*models.ClientContext, error) {
	sample := documentText
	if len(sample) > 4000 {
		sample = sample[:4000]
	}

	prompt := fmt.Sprintf(`Extract client metadata from this RFP excerpt.

Client name: %s

Document:
%s

Return a JSON object with keys "industry" (string), "company_size" (string, e.g. "enterprise", "mid-market", "smb") and "compliance_needs" (array of strings such as "SOC2", "HIPAA", "GDPR"). Use empty values when the document gives no signal.`, clientName, sample)

	raw, err := llm.CompleteStructured(ctx, CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: metadataSystemPrompt,
		MaxTokens:    500,
	})
	if err != nil {
		if errors.Is(err, ErrUnparsableStructuredOutput) {
			return heuristicClientContext(documentText, clientName), nil
		}
		return nil, err
	}

	var parsed struct {
		Industry        string   `json:"industry"`
		CompanySize     string   `json:"company_size"`
		ComplianceNeeds []string `json:"compliance_needs"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return heuristicClientContext(documentText, clientName), nil
	}

	return &models.ClientContext{
		Name:            clientName,
		Industry:        strings.ToLower(strings.TrimSpace(parsed.Industry)),
		CompanySize:     strings.ToLower(strings.TrimSpace(parsed.CompanySize)),
		ComplianceNeeds: parsed.ComplianceNeeds,
	}, nil
}

var complianceMarkers = []string{"SOC2", "SOC 2", "HIPAA", "GDPR", "PCI", "ISO 27001", "FedRAMP"}

// heuristicClientContext scans the document for compliance markers when
// the model response could not be parsed.
func heuristicClientContext(documentText, clientName string) *models.ClientContext {
	cc := &models.ClientContext{Name: clientName}

	upper := strings.ToUpper(documentText)
	seen := make(map[string]bool)
	for _, marker := range complianceMarkers {
		if !strings.Contains(upper, strings.ToUpper(marker)) {
			continue
		}
		normalized := strings.ReplaceAll(marker, " ", "")
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		cc.ComplianceNeeds = append(cc.ComplianceNeeds, normalized)
	}
	return cc
}
