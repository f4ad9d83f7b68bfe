package intelligence

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/engramlabs/engram-go/pkg/llm"
)

// ImportanceEvaluator evaluates the importance of memory content.
//
// It supports two evaluation modes:
//   - LLM-based: more accurate, requires a configured provider
//   - Rule-based: keyword heuristics, no LLM required
//
// If the LLM call fails the evaluator silently falls back to rules, so a
// provider outage never blocks a store operation.
type ImportanceEvaluator struct {
	// llm is the LLM provider for LLM-based evaluation (nil = rules only).
	llm llm.Provider
}

// NewImportanceEvaluator creates a new importance evaluator.
// The provider may be nil, in which case only rule-based evaluation is used.
func NewImportanceEvaluator(provider llm.Provider) *ImportanceEvaluator {
	return &ImportanceEvaluator{llm: provider}
}

// Evaluate returns an importance score between 0.0 and 1.0, where 1.0 is
// extremely important and 0.0 is not important.
func (e *ImportanceEvaluator) Evaluate(ctx context.Context, content string, category string) float64 {
	if e.llm != nil {
		if score, err := e.evaluateWithLLM(ctx, content); err == nil {
			return score
		}
	}
	return e.evaluateWithRules(content, category)
}

// evaluateWithLLM asks the LLM for a single importance score.
func (e *ImportanceEvaluator) evaluateWithLLM(ctx context.Context, content string) (float64, error) {
	systemPrompt := `You are an importance evaluator for memory content.
Evaluate the importance of the given content on a scale from 0.0 to 1.0.
Consider relevance, novelty, emotional impact, actionability, and personal significance.
Return a JSON object with an "importance_score" field.`

	userPrompt := "Content: " + content + "\n\nReturn JSON: {\"importance_score\": 0.0-1.0}"

	response, err := e.llm.GenerateWithMessages(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return 0.5, err
	}

	return parseImportanceResponse(response), nil
}

// categoryBaseline maps memory categories to a baseline importance. Identity
// and health facts matter more than generic context.
var categoryBaseline = map[string]float64{
	"identity":   0.9,
	"family":     0.8,
	"health":     0.8,
	"financial":  0.7,
	"preference": 0.6,
	"decision":   0.6,
	"project":    0.5,
	"context":    0.3,
}

// evaluateWithRules evaluates importance using keyword heuristics layered on
// the category baseline.
func (e *ImportanceEvaluator) evaluateWithRules(content string, category string) float64 {
	score, ok := categoryBaseline[category]
	if !ok {
		score = 0.4
	}

	contentLower := strings.ToLower(content)

	importantKeywords := []string{
		"important", "critical", "urgent", "remember", "always", "never",
		"birthday", "anniversary", "allergic", "deadline",
	}
	for _, keyword := range importantKeywords {
		if strings.Contains(contentLower, keyword) {
			score += 0.1
		}
	}

	// Very short fragments carry little signal.
	if len(content) < 20 {
		score -= 0.1
	}

	return math.Max(0.0, math.Min(score, 1.0))
}

// parseImportanceResponse parses the LLM response to extract the score.
func parseImportanceResponse(response string) float64 {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}") + 1
	if start >= 0 && end > start {
		var result map[string]interface{}
		if err := json.Unmarshal([]byte(response[start:end]), &result); err == nil {
			if score, ok := result["importance_score"].(float64); ok {
				return math.Max(0.0, math.Min(1.0, score))
			}
		}
	}

	// Default medium importance when the response is unparseable.
	return 0.5
}
