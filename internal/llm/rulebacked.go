package llm

import (
	"context"

	"github.com/gradepipe/gradepipe/internal/llm/prompts"
	"github.com/gradepipe/gradepipe/internal/model"
)

// ruleBackedTemperature keeps the structured evaluations low-variance.
const ruleBackedTemperature = 0.1

// RuleBacked is the structured, low-variance scoring capability: relevance
// checking, marks distribution, required-points coverage, numerical step
// validation, and diagram evaluation. Every operation returns a bounded,
// normalized structure; on failure it returns a zeroed-but-valid default
// alongside the error so callers can degrade instead of aborting.
type RuleBacked struct {
	client
	variant prompts.Variant
}

// NewRuleBacked creates the rule-backed scoring client.
func NewRuleBacked(cfg Config, variant prompts.Variant) *RuleBacked {
	return &RuleBacked{
		client:  newClient(cfg, ruleBackedTemperature),
		variant: variant,
	}
}

// CheckRelevance decides whether an answer addresses the question at all.
func (c *RuleBacked) CheckRelevance(ctx context.Context, q model.Question, answer string) (model.RelevanceResult, error) {
	var p relevancePayload
	if err := c.chatJSON(ctx, prompts.Relevance(q), prompts.SanitizeAnswer(answer), &p); err != nil {
		return model.RelevanceResult{}, err
	}
	return p.normalize(), nil
}

// MarksDistribution evaluates a descriptive answer across the seven fixed
// dimensions.
func (c *RuleBacked) MarksDistribution(ctx context.Context, q model.Question, answer string) (model.MarksDistribution, error) {
	var p marksPayload
	if err := c.chatJSON(ctx, prompts.MarksDistribution(c.variant, q), prompts.SanitizeAnswer(answer), &p); err != nil {
		return model.EmptyMarksDistribution(q.MaxPoints), err
	}
	return p.normalize(q.MaxPoints), nil
}

// RequiredPoints checks coverage of the question's required conceptual
// points, always returning at least MinPointsRequired entries.
func (c *RuleBacked) RequiredPoints(ctx context.Context, q model.Question, answer string) ([]model.PointValidation, error) {
	var p pointsPayload
	if err := c.chatJSON(ctx, prompts.RequiredPoints(q), prompts.SanitizeAnswer(answer), &p); err != nil {
		return nil, err
	}
	return p.normalize(q.MinPointsRequired), nil
}

// NumericalValidation checks a numerical answer's formula, steps, and final
// value, awarding bounded partial marks.
func (c *RuleBacked) NumericalValidation(ctx context.Context, q model.Question, answer string) (model.NumericalValidation, error) {
	var p numericalPayload
	if err := c.chatJSON(ctx, prompts.Numerical(q), prompts.SanitizeAnswer(answer), &p); err != nil {
		return model.NumericalValidation{}, err
	}
	return p.normalize(q.MaxPoints), nil
}

// DiagramEvaluation checks a diagram answer against the question's required
// components (its mandatory keyword set).
func (c *RuleBacked) DiagramEvaluation(ctx context.Context, q model.Question, answer string) (model.DiagramEvaluation, error) {
	var p diagramPayload
	if err := c.chatJSON(ctx, prompts.Diagram(q), prompts.SanitizeAnswer(answer), &p); err != nil {
		return model.EmptyDiagramEvaluation(q.MaxPoints, q.MandatoryKeywords), err
	}
	return p.normalize(q.MaxPoints, q.MandatoryKeywords), nil
}
