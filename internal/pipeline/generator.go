package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/services"
	"rfp-pilot/backend/pkg/models"
)

// InsufficientInformationAnswer is returned verbatim when retrieval
// produces no evidence; no generative call is made in that case.
const InsufficientInformationAnswer = "I don't have enough information in the knowledge base to answer this question. " +
	"Please try rephrasing your question or add relevant content to the knowledge base."

// ErrorMarkerAnswer replaces an answer whose generative call failed.
const ErrorMarkerAnswer = "[Error] Unable to generate an answer for this question. Please review manually."

const qaSystemPrompt = `You are a proposal assistant with access to a knowledge base of past proposals, case studies and company information. Your job is to:

1. Answer questions accurately based ONLY on the provided context
2. Be clear and concise in your responses
3. If the context doesn't contain enough information to fully answer the question, say so clearly
4. Cite which sources you used by referencing their numbers (e.g., [Source 1], [Source 2])
5. Maintain a professional, helpful tone

IMPORTANT: Only use information from the provided context. Do not make up information.`

// Generator answers a single question through retrieval-augmented
// generation and scores the answer's confidence from retrieval quality.
type Generator struct {
	llm       services.LLMClient
	retriever *Retriever
	logger    *logging.Logger
}

// NewGenerator creates a new Generator.
func NewGenerator(llm services.LLMClient, retriever *Retriever, logger *logging.Logger) *Generator {
	return &Generator{llm: llm, retriever: retriever, logger: logger}
}

// Answer produces a grounded answer for one question. A retrieval
// failure is returned as an error for the caller to isolate; a failure
// of the generative call itself is converted into a zero-confidence
// error-marker answer and not propagated.
func (g *Generator) Answer(ctx context.Context, question string, client models.ClientContext, topK int) (models.GeneratedAnswer, error) {
	chunks, err := g.retriever.Search(ctx, question, client, topK)
	if err != nil {
		return models.GeneratedAnswer{}, err
	}

	answer := models.GeneratedAnswer{
		Question: question,
		Sources:  chunks,
	}

	if len(chunks) == 0 {
		answer.Answer = InsufficientInformationAnswer
		answer.Confidence = 0.0
		return answer, nil
	}

	text, err := g.llm.Complete(ctx, services.CompletionRequest{
		Prompt:       buildAnswerPrompt(question, client, chunks),
		SystemPrompt: qaSystemPrompt,
		Temperature:  0.3,
		MaxTokens:    1500,
	})
	if err != nil {
		g.logger.Error("answer generation failed", "question", question, "error", err)
		answer.Answer = ErrorMarkerAnswer
		answer.Confidence = 0.0
		return answer, nil
	}

	answer.Answer = text
	answer.Confidence = retrievalConfidence(chunks)
	return answer, nil
}

// Ask answers a one-shot question outside any workflow.
func (g *Generator) Ask(ctx context.Context, question string, client models.ClientContext, topK int) (*models.QAResponse, error) {
	answer, err := g.Answer(ctx, question, client, topK)
	if err != nil {
		return nil, err
	}
	return &models.QAResponse{
		Question:    answer.Question,
		Answer:      answer.Answer,
		Sources:     answer.Sources,
		Confidence:  answer.Confidence,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// buildAnswerPrompt enumerates each evidence chunk with its rank, raw
// similarity and provenance metadata, then appends the question.
func buildAnswerPrompt(question string, client models.ClientContext, chunks []models.RetrievedChunk) string {
	var sb strings.Builder
	sb.WriteString("Context from knowledge base:\n")

	for i, chunk := range chunks {
		var meta []string
		for _, key := range []string{models.MetaSource, models.MetaCategory, models.MetaIndustry, models.MetaLastUsed} {
			if v := chunk.Metadata[key]; v != "" {
				meta = append(meta, fmt.Sprintf("%s: %s", titleKey(key), v))
			}
		}
		metaStr := "No metadata"
		if len(meta) > 0 {
			metaStr = strings.Join(meta, " | ")
		}

		fmt.Fprintf(&sb, "[Source %d] (Relevance: %.2f)\nMetadata: %s\nContent:\n%s\n\n---\n",
			i+1, chunk.Score, metaStr, chunk.Text)
	}

	if client.Name != "" {
		fmt.Fprintf(&sb, "\nClient: %s", client.Name)
		if client.Industry != "" {
			fmt.Fprintf(&sb, ", Industry: %s", client.Industry)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\nQuestion: %s\n\nPlease provide a comprehensive answer based on the context above. Include source citations where relevant.", question)
	return sb.String()
}

func titleKey(key string) string {
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + strings.ReplaceAll(key[1:], "_", " ")
}

// retrievalConfidence derives a [0,1] confidence from retrieval quality
// alone, independent of the generated text: 40% average similarity, 40%
// best similarity, 20% result coverage normalized to five chunks.
func retrievalConfidence(chunks []models.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0.0
	}

	var sum, max float64
	for _, chunk := range chunks {
		sum += chunk.Score
		if chunk.Score > max {
			max = chunk.Score
		}
	}
	avg := sum / float64(len(chunks))

	coverage := float64(len(chunks)) / 5.0
	if coverage > 1.0 {
		coverage = 1.0
	}

	confidence := 0.4*avg + 0.4*max + 0.2*coverage
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}
	return confidence
}
