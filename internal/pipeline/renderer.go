package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rfp-pilot/backend/pkg/models"
)

// Renderer is the external formatting collaborator. It turns the answer
// set into an output artifact and returns an opaque reference to it.
type Renderer interface {
	Render(answers []models.GeneratedAnswer, clientName, destDir string) (string, error)
}

// MarkdownRenderer renders the answer set as a Markdown document on the
// local filesystem.
type MarkdownRenderer struct{}

// Render writes the formatted response document and returns its path.
func (MarkdownRenderer) Render(answers []models.GeneratedAnswer, clientName, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	slug := strings.NewReplacer(" ", "_", "/", "_").Replace(clientName)
	filename := fmt.Sprintf("RFP_Response_%s_%s.md", slug, time.Now().Format("20060102"))
	path := filepath.Join(destDir, filename)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# RFP Response: %s\n\nGenerated %s\n\n", clientName, time.Now().Format("January 2, 2006"))

	for i, answer := range answers {
		fmt.Fprintf(&sb, "## %d. %s\n\n%s\n\n", i+1, answer.Question, answer.Answer)
		fmt.Fprintf(&sb, "*Confidence: %.0f%%*\n\n", answer.Confidence*100)

		if answer.Confidence < 0.5 {
			sb.WriteString("> Flagged for manual review (low confidence).\n\n")
		}
		if len(answer.Sources) > 0 {
			sb.WriteString("Sources:\n")
			for j, src := range answer.Sources {
				source := src.Metadata[models.MetaSource]
				if source == "" {
					source = "knowledge base"
				}
				fmt.Fprintf(&sb, "%d. %s (relevance %.2f)\n", j+1, source, src.Score)
			}
			sb.WriteString("\n")
		}
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write response document: %w", err)
	}
	return path, nil
}
