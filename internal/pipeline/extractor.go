// Package pipeline implements the stateful RFP question-answering
// pipeline: question extraction, retrieval-augmented answer generation,
// quality review and the orchestrating state machine.
package pipeline

import (
	"context"
	"regexp"
	"strings"

	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/services"
)

// QuestionCache is the content-addressable cache consulted before any
// generative extraction call.
type QuestionCache interface {
	Get(ctx context.Context, documentText string) ([]string, bool)
	Set(ctx context.Context, documentText string, questions []string) bool
}

// Extractor turns raw RFP text into an ordered list of discrete
// questions, with a heuristic fallback when the generative path fails.
type Extractor struct {
	llm          services.LLMClient
	cache        QuestionCache
	logger       *logging.Logger
	maxQuestions int
}

// NewExtractor creates a new Extractor.
func NewExtractor(llm services.LLMClient, cache QuestionCache, logger *logging.Logger, maxQuestions int) *Extractor {
	if maxQuestions <= 0 {
		maxQuestions = 50
	}
	return &Extractor{llm: llm, cache: cache, logger: logger, maxQuestions: maxQuestions}
}

const extractionPromptHead = `You are an RFP analysis expert. Extract ALL questions and requirements from this RFP document.

Rules:
1. Extract explicit questions (sentences ending with ?)
2. Extract implicit requirements (e.g., "Vendor must provide...", "Describe your approach to...")
3. Rephrase implicit requirements as questions
4. Keep questions clear and specific
5. Preserve technical terminology
6. Number each question

RFP Document:
`

const extractionPromptTail = `

Return ONLY a numbered list of questions, one per line. Format:
1. First question here?
2. Second question here?

Questions:`

// Extract returns the ordered question list for a document. The cache is
// checked first; every successful extraction, generative or fallback, is
// written back keyed on the exact input text.
func (e *Extractor) Extract(ctx context.Context, documentText string) ([]string, error) {
	if questions, ok := e.cache.Get(ctx, documentText); ok {
		return questions, nil
	}

	questions, err := e.extractWithLLM(ctx, documentText)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("generative extraction failed, using fallback", "error", err)
		questions = nil
	}

	if len(questions) == 0 {
		questions = e.fallbackExtract(documentText)
	}

	if len(questions) > 0 {
		e.cache.Set(ctx, documentText, questions)
	}
	return questions, nil
}

func (e *Extractor) extractWithLLM(ctx context.Context, documentText string) ([]string, error) {
	// Keep the prompt bounded for very large documents.
	truncated := documentText
	if len(truncated) > 8000 {
		truncated = truncated[:8000]
	}

	response, err := e.llm.Complete(ctx, services.CompletionRequest{
		Prompt:      extractionPromptHead + truncated + extractionPromptTail,
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, err
	}

	return parseQuestionList(response), nil
}

var numberingRe = regexp.MustCompile(`^\d+[.)]\s*`)

// parseQuestionList cleans a newline-delimited numbered list: numbering
// is stripped, fragments of 10 characters or fewer are discarded, and a
// question mark is appended to entries missing terminal punctuation.
func parseQuestionList(response string) []string {
	var questions []string
	for _, line := range strings.Split(response, "\n") {
		cleaned := strings.TrimSpace(numberingRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if len(cleaned) <= 10 {
			continue
		}
		if !strings.HasSuffix(cleaned, "?") && !strings.HasSuffix(cleaned, ".") {
			cleaned += "?"
		}
		questions = append(questions, cleaned)
	}
	return questions
}

var obligationPhrases = []string{
	"please describe",
	"please provide",
	"must provide",
	"should provide",
	"vendor must",
	"vendor should",
	"explain your",
	"describe your",
	"what is your",
	"how do you",
	"provide details",
}

// fallbackExtract finds questions by sentence splitting and a fixed
// vocabulary of obligation phrases. Duplicates are removed preserving
// first-seen order; the result is capped to bound downstream cost.
func (e *Extractor) fallbackExtract(documentText string) []string {
	var questions []string
	seen := make(map[string]bool)

	for _, sentence := range splitSentences(documentText) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		keep := strings.HasSuffix(sentence, "?")
		if !keep {
			lower := strings.ToLower(sentence)
			for _, phrase := range obligationPhrases {
				if strings.Contains(lower, phrase) {
					keep = true
					break
				}
			}
		}
		if !keep {
			continue
		}

		if !strings.HasSuffix(sentence, "?") {
			sentence = strings.TrimRight(sentence, ".") + "?"
		}
		if seen[sentence] {
			continue
		}
		seen[sentence] = true
		questions = append(questions, sentence)

		if len(questions) >= e.maxQuestions {
			break
		}
	}
	return questions
}

var sentenceBoundaryRe = regexp.MustCompile(`[.!]+\s+|\n+`)

// splitSentences breaks text on sentence boundaries while keeping any
// trailing question mark attached to its sentence.
func splitSentences(text string) []string {
	var sentences []string
	for _, part := range sentenceBoundaryRe.Split(text, -1) {
		for _, q := range strings.SplitAfter(part, "?") {
			if strings.TrimSpace(q) != "" {
				sentences = append(sentences, q)
			}
		}
	}
	return sentences
}
