package llm

import (
	"context"

	"github.com/gradepipe/gradepipe/internal/llm/prompts"
	"github.com/gradepipe/gradepipe/internal/model"
)

// reasoningTemperature allows the judgment calls some latitude.
const reasoningTemperature = 0.4

// Reasoning is the higher-variance judgment capability: point-of-view
// detection, cross-answer originality analysis, and career-fit mapping.
type Reasoning struct {
	client
}

// NewReasoning creates the reasoning scoring client.
func NewReasoning(cfg Config) *Reasoning {
	return &Reasoning{client: newClient(cfg, reasoningTemperature)}
}

// DetectPointOfView rates how much personal voice an answer shows, 0..100.
func (c *Reasoning) DetectPointOfView(ctx context.Context, answer string) (float64, error) {
	var p povPayload
	if err := c.chatJSON(ctx, prompts.PointOfView(), prompts.SanitizeAnswer(answer), &p); err != nil {
		return 0, err
	}
	return clamp(float64(p.POVScore), 0, 100), nil
}

// AnalyzeOriginality analyzes style and authorship signals across all
// descriptive answers of one attempt in a single call.
func (c *Reasoning) AnalyzeOriginality(ctx context.Context, answers []string) (model.OriginalityMetrics, error) {
	var p originalityPayload
	if err := c.chatJSON(ctx, prompts.Originality(), prompts.AnswerSet(answers), &p); err != nil {
		return model.OriginalityMetrics{}, err
	}
	return p.normalize(), nil
}

// GenerateCareerMapping suggests career fields from the attempt's
// career-related question/answer pairs.
func (c *Reasoning) GenerateCareerMapping(ctx context.Context, questions, answers []string) (model.CareerMapping, error) {
	var p careerPayload
	if err := c.chatJSON(ctx, prompts.CareerMapping(), prompts.QuestionAnswerSet(questions, answers), &p); err != nil {
		return model.CareerMapping{}, err
	}
	return p.normalize(), nil
}
