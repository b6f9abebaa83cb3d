package grader

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gradepipe/gradepipe/internal/i18n"
	"github.com/gradepipe/gradepipe/internal/model"
)

// minAnswerRunes: trimmed answers below this length short-circuit to zero
// without any backend call.
const minAnswerRunes = 3

// relevanceThreshold: gate scores at or above this license further grading.
const relevanceThreshold = 40

// lowPOVThreshold: point-of-view scores below this raise the low personal
// voice flag. Advisory only, never added to the score.
const lowPOVThreshold = 40

// Depth tier contribution weights for required-point coverage.
const (
	depthWeightHigh   = 1.0
	depthWeightMedium = 0.7
	depthWeightLow    = 0.4
)

// RelevanceChecker decides whether an answer addresses the question at all.
type RelevanceChecker interface {
	CheckRelevance(ctx context.Context, question model.Question, answer string) (model.RelevanceResult, error)
}

// RuleBackedScorer performs structured, low-variance evaluations via a
// deterministic-leaning model backend. Implementations must return bounded
// structures; the grader substitutes zeroed defaults on error.
type RuleBackedScorer interface {
	MarksDistribution(ctx context.Context, question model.Question, answer string) (model.MarksDistribution, error)
	RequiredPoints(ctx context.Context, question model.Question, answer string) ([]model.PointValidation, error)
	NumericalValidation(ctx context.Context, question model.Question, answer string) (model.NumericalValidation, error)
	DiagramEvaluation(ctx context.Context, question model.Question, answer string) (model.DiagramEvaluation, error)
}

// ReasoningScorer performs higher-variance judgment via a reasoning-oriented
// backend.
type ReasoningScorer interface {
	DetectPointOfView(ctx context.Context, answer string) (float64, error)
	AnalyzeOriginality(ctx context.Context, answers []string) (model.OriginalityMetrics, error)
	GenerateCareerMapping(ctx context.Context, prompts, answers []string) (model.CareerMapping, error)
}

// Weights holds the tunable coefficients of the descriptive scoring formula.
// The shape is fixed (AI trust scales with corroborating keyword evidence);
// the literal constants are calibration choices.
type Weights struct {
	MandatoryKeyword  float64 // share of maxPoints for mandatory keyword coverage
	SupportingKeyword float64 // share for supporting keyword coverage
	ConceptPoints     float64 // share for depth-weighted required points
	AIBase            float64 // AI quality share at zero keyword coverage
	AISpan            float64 // additional AI quality share at full coverage
}

// DefaultWeights returns the calibrated production coefficients.
func DefaultWeights() Weights {
	return Weights{
		MandatoryKeyword:  0.40,
		SupportingKeyword: 0.15,
		ConceptPoints:     0.25,
		AIBase:            0.05,
		AISpan:            0.15,
	}
}

// Grader is the per-answer grading orchestrator plus the attempt-level
// aggregator. GradeAnswer and AggregateAttempt always return fully populated,
// bounded results; no backend failure escapes them.
type Grader struct {
	relevance RelevanceChecker
	rules     RuleBackedScorer
	reasoning ReasoningScorer
	weights   Weights
}

// Option configures a Grader.
type Option func(*Grader)

// WithWeights overrides the descriptive scoring coefficients.
func WithWeights(w Weights) Option {
	return func(g *Grader) { g.weights = w }
}

// New creates a Grader over the three scoring capabilities.
func New(relevance RelevanceChecker, rules RuleBackedScorer, reasoning ReasoningScorer, opts ...Option) *Grader {
	g := &Grader{
		relevance: relevance,
		rules:     rules,
		reasoning: reasoning,
		weights:   DefaultWeights(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GradeAnswer grades a single answer to a single question. It is safe to
// call concurrently for distinct answers of one attempt.
func (g *Grader) GradeAnswer(ctx context.Context, q model.Question, answerText string) model.GradingResult {
	answer := strings.TrimSpace(answerText)

	if utf8.RuneCountInString(answer) < minAnswerRunes {
		return model.GradingResult{
			QuestionID: q.ID,
			Marks:      model.EmptyMarksDistribution(q.MaxPoints),
			Feedback:   i18n.T(ctx, "feedback.no_answer"),
		}
	}

	if q.Type == model.QuestionMCQ {
		return g.gradeMCQ(ctx, q, answer)
	}

	rel := g.checkRelevance(ctx, q, answer)
	if !rel.Relevant {
		return model.GradingResult{
			QuestionID:     q.ID,
			RelevanceScore: rel.Score,
			Marks:          model.EmptyMarksDistribution(q.MaxPoints),
			Flags:          model.IntegrityFlags{IrrelevantAnswer: true},
			Feedback: i18n.Td(ctx, "feedback.irrelevant", map[string]any{
				"QuestionTopic": rel.QuestionTopic,
				"AnswerTopic":   rel.AnswerTopic,
			}),
		}
	}

	switch q.Type {
	case model.QuestionNumerical:
		return g.gradeNumerical(ctx, q, answer, rel)
	case model.QuestionDiagram:
		return g.gradeDiagram(ctx, q, answer, rel)
	default:
		return g.gradeDescriptive(ctx, q, answer, rel)
	}
}

// checkRelevance runs the relevance gate with the documented fail-open
// policy: a backend failure yields a permissive default so a transient
// fault cannot zero every answer in an attempt. Degraded mode is logged,
// not treated as a real check.
func (g *Grader) checkRelevance(ctx context.Context, q model.Question, answer string) model.RelevanceResult {
	rel, err := g.relevance.CheckRelevance(ctx, q, answer)
	if err != nil {
		slog.Warn("relevance gate degraded, failing open", "question_id", q.ID, "error", err)
		return model.RelevanceResult{Score: 70, Relevant: true, Degraded: true}
	}
	rel.Relevant = rel.Score >= relevanceThreshold
	return rel
}

func (g *Grader) gradeMCQ(ctx context.Context, q model.Question, answer string) model.GradingResult {
	res := model.GradingResult{
		QuestionID: q.ID,
		Marks:      model.EmptyMarksDistribution(q.MaxPoints),
	}
	if answer == strings.TrimSpace(q.CanonicalAnswer) {
		res.Score = q.MaxPoints
		res.Marks.ConceptAccuracy.Awarded = res.Marks.ConceptAccuracy.Max
		res.Marks.Total.Awarded = float64(q.MaxPoints)
		res.Feedback = i18n.T(ctx, "feedback.mcq_correct")
	} else {
		res.Feedback = i18n.T(ctx, "feedback.mcq_incorrect")
	}
	return res
}

func (g *Grader) gradeNumerical(ctx context.Context, q model.Question, answer string, rel model.RelevanceResult) model.GradingResult {
	nv, err := g.rules.NumericalValidation(ctx, q, answer)
	if err != nil {
		slog.Warn("numerical validation failed, using zero default", "question_id", q.ID, "error", err)
		nv = model.NumericalValidation{}
	}

	msgID := "feedback.numerical_wrong"
	switch {
	case nv.FinalValueCorrect && nv.FormulaCorrect && nv.StepsValid:
		msgID = "feedback.numerical_correct"
	case nv.PartialMarks > 0:
		msgID = "feedback.numerical_partial"
	}

	return model.GradingResult{
		QuestionID:     q.ID,
		Score:          clampScore(nv.PartialMarks, q.MaxPoints),
		RelevanceScore: rel.Score,
		Marks:          model.EmptyMarksDistribution(q.MaxPoints),
		Numerical:      &nv,
		Feedback:       i18n.T(ctx, msgID),
	}
}

func (g *Grader) gradeDiagram(ctx context.Context, q model.Question, answer string, rel model.RelevanceResult) model.GradingResult {
	// Keyword analysis runs for the record; the diagram score comes from
	// the component evaluation alone.
	ka := AnalyzeKeywords(answer, q.MandatoryKeywords, q.SupportingKeywords)

	de, err := g.rules.DiagramEvaluation(ctx, q, answer)
	if err != nil {
		slog.Warn("diagram evaluation failed, using zero default", "question_id", q.ID, "error", err)
		de = model.EmptyDiagramEvaluation(q.MaxPoints, q.MandatoryKeywords)
	}

	feedback := i18n.T(ctx, "feedback.diagram_complete")
	if len(de.MissingComponents) > 0 {
		feedback = i18n.Td(ctx, "feedback.diagram_missing", map[string]any{
			"Components": strings.Join(de.MissingComponents, ", "),
		})
	}

	return model.GradingResult{
		QuestionID:     q.ID,
		Score:          clampScore(de.Total.Awarded, q.MaxPoints),
		RelevanceScore: rel.Score,
		Marks:          model.EmptyMarksDistribution(q.MaxPoints),
		Keywords:       &ka,
		Diagram:        &de,
		Feedback:       feedback,
	}
}

// gradeDescriptive runs the composite scoring formula: deterministic keyword
// and length evidence, three concurrent backend calls joined settle-all, four
// weighted components, then the ordered cap/penalty pipeline.
func (g *Grader) gradeDescriptive(ctx context.Context, q model.Question, answer string, rel model.RelevanceResult) model.GradingResult {
	ka := AnalyzeKeywords(answer, q.MandatoryKeywords, q.SupportingKeywords)
	tooShort := TooShort(answer, q.MinWords)

	marks, points, pov := g.descriptiveCalls(ctx, q, answer)

	st := coverageStats{
		mandatoryTotal:  len(q.MandatoryKeywords),
		mandatoryFound:  foundCount(ka.Mandatory),
		supportingTotal: len(q.SupportingKeywords),
		supportingFound: foundCount(ka.Supporting),
		pointsRequired:  q.MinPointsRequired,
		pointsCovered:   coveredCount(points),
		tooShort:        tooShort,
		stuffing:        ka.Stuffing,
		relevance:       rel.Score,
	}

	mp := float64(q.MaxPoints)
	w := g.weights

	mandatory := w.MandatoryKeyword * mp * st.mandatoryCoverage()
	supporting := w.SupportingKeyword * mp * st.supportingCoverage()
	concepts := w.ConceptPoints * mp * depthWeightedCoverage(points)

	// The AI quality component's weight grows with corroborating keyword
	// evidence, keeping an ungrounded model score from dominating.
	aiWeight := w.AIBase + w.AISpan*st.combinedCoverage()
	aiRatio := 0.0
	if marks.Total.Max > 0 {
		aiRatio = marks.Total.Awarded / marks.Total.Max
	}
	quality := aiWeight * mp * aiRatio

	raw := mandatory + supporting + concepts + quality
	final, fired := applyCaps(raw, q.MaxPoints, st)

	return model.GradingResult{
		QuestionID:     q.ID,
		Score:          clampScore(final, q.MaxPoints),
		RelevanceScore: rel.Score,
		Marks:          marks,
		Points:         points,
		Keywords:       &ka,
		Flags: model.IntegrityFlags{
			KeywordPenalty:   ka.Stuffing,
			LowPersonalVoice: pov < lowPOVThreshold,
		},
		Feedback: descriptiveFeedback(ctx, clampScore(final, q.MaxPoints), q.MaxPoints, fired),
	}
}

// descriptiveCalls issues the three independent backend calls concurrently
// and joins them settle-all: a failed call degrades to its neutral default
// and never aborts its siblings.
func (g *Grader) descriptiveCalls(ctx context.Context, q model.Question, answer string) (model.MarksDistribution, []model.PointValidation, float64) {
	marks := model.EmptyMarksDistribution(q.MaxPoints)
	var points []model.PointValidation
	pov := 100.0 // neutral: a failed POV call must not raise the flag

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m, err := g.rules.MarksDistribution(ctx, q, answer)
		if err != nil {
			slog.Warn("marks distribution failed, using zero default", "question_id", q.ID, "error", err)
			return
		}
		marks = m
	}()

	if q.MinPointsRequired > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := g.rules.RequiredPoints(ctx, q, answer)
			if err != nil {
				slog.Warn("required points failed, using empty default", "question_id", q.ID, "error", err)
				return
			}
			points = p
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p, err := g.reasoning.DetectPointOfView(ctx, answer)
		if err != nil {
			slog.Warn("point-of-view detection failed, using neutral default", "question_id", q.ID, "error", err)
			return
		}
		pov = p
	}()

	wg.Wait()
	return marks, points, pov
}

// depthWeightedCoverage converts point validations into a 0..1 coverage
// value where each covered point contributes by its depth tier weight.
func depthWeightedCoverage(points []model.PointValidation) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range points {
		if !p.Covered {
			continue
		}
		switch p.Depth {
		case model.DepthHigh:
			sum += depthWeightHigh
		case model.DepthMedium:
			sum += depthWeightMedium
		default:
			sum += depthWeightLow
		}
	}
	return sum / float64(len(points))
}

func coveredCount(points []model.PointValidation) int {
	n := 0
	for _, p := range points {
		if p.Covered {
			n++
		}
	}
	return n
}

func descriptiveFeedback(ctx context.Context, score, maxPoints int, fired []string) string {
	parts := []string{i18n.Td(ctx, "feedback.descriptive", map[string]any{
		"Score":     score,
		"MaxPoints": maxPoints,
	})}
	for _, id := range fired {
		parts = append(parts, i18n.T(ctx, id))
	}
	return strings.Join(parts, " ")
}
