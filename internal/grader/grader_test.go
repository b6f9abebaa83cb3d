package grader

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gradepipe/gradepipe/internal/i18n"
	"github.com/gradepipe/gradepipe/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeBackends implements all three scoring capabilities with overridable
// function fields and per-operation call counters.
type fakeBackends struct {
	relevanceFn   func(model.Question, string) (model.RelevanceResult, error)
	marksFn       func(model.Question, string) (model.MarksDistribution, error)
	pointsFn      func(model.Question, string) ([]model.PointValidation, error)
	numericalFn   func(model.Question, string) (model.NumericalValidation, error)
	diagramFn     func(model.Question, string) (model.DiagramEvaluation, error)
	povFn         func(string) (float64, error)
	originalityFn func([]string) (model.OriginalityMetrics, error)
	careerFn      func([]string, []string) (model.CareerMapping, error)

	calls struct {
		relevance   atomic.Int32
		marks       atomic.Int32
		points      atomic.Int32
		numerical   atomic.Int32
		diagram     atomic.Int32
		pov         atomic.Int32
		originality atomic.Int32
		career      atomic.Int32
	}
}

func (f *fakeBackends) CheckRelevance(_ context.Context, q model.Question, answer string) (model.RelevanceResult, error) {
	f.calls.relevance.Add(1)
	if f.relevanceFn != nil {
		return f.relevanceFn(q, answer)
	}
	return model.RelevanceResult{Score: 90, Relevant: true}, nil
}

func (f *fakeBackends) MarksDistribution(_ context.Context, q model.Question, answer string) (model.MarksDistribution, error) {
	f.calls.marks.Add(1)
	if f.marksFn != nil {
		return f.marksFn(q, answer)
	}
	return model.EmptyMarksDistribution(q.MaxPoints), nil
}

func (f *fakeBackends) RequiredPoints(_ context.Context, q model.Question, answer string) ([]model.PointValidation, error) {
	f.calls.points.Add(1)
	if f.pointsFn != nil {
		return f.pointsFn(q, answer)
	}
	return nil, nil
}

func (f *fakeBackends) NumericalValidation(_ context.Context, q model.Question, answer string) (model.NumericalValidation, error) {
	f.calls.numerical.Add(1)
	if f.numericalFn != nil {
		return f.numericalFn(q, answer)
	}
	return model.NumericalValidation{}, nil
}

func (f *fakeBackends) DiagramEvaluation(_ context.Context, q model.Question, answer string) (model.DiagramEvaluation, error) {
	f.calls.diagram.Add(1)
	if f.diagramFn != nil {
		return f.diagramFn(q, answer)
	}
	return model.EmptyDiagramEvaluation(q.MaxPoints, q.MandatoryKeywords), nil
}

func (f *fakeBackends) DetectPointOfView(_ context.Context, answer string) (float64, error) {
	f.calls.pov.Add(1)
	if f.povFn != nil {
		return f.povFn(answer)
	}
	return 80, nil
}

func (f *fakeBackends) AnalyzeOriginality(_ context.Context, answers []string) (model.OriginalityMetrics, error) {
	f.calls.originality.Add(1)
	if f.originalityFn != nil {
		return f.originalityFn(answers)
	}
	return defaultOriginality(), nil
}

func (f *fakeBackends) GenerateCareerMapping(_ context.Context, prompts, answers []string) (model.CareerMapping, error) {
	f.calls.career.Add(1)
	if f.careerFn != nil {
		return f.careerFn(prompts, answers)
	}
	return model.CareerMapping{}, nil
}

func newTestGrader(f *fakeBackends, opts ...Option) *Grader {
	return New(f, f, f, opts...)
}

func fullMarks(maxPoints int) model.MarksDistribution {
	m := model.EmptyMarksDistribution(maxPoints)
	m.ConceptAccuracy.Awarded = m.ConceptAccuracy.Max
	m.LogicalReasoning.Awarded = m.LogicalReasoning.Max
	m.PointsCoverage.Awarded = m.PointsCoverage.Max
	m.KeywordAccuracy.Awarded = m.KeywordAccuracy.Max
	m.Structure.Awarded = m.Structure.Max
	m.Length.Awarded = m.Length.Max
	m.OriginalThought.Awarded = m.OriginalThought.Max
	m.Total.Awarded = m.Total.Max
	return m
}

func TestGradeAnswerEmptyShortCircuit(t *testing.T) {
	f := &fakeBackends{}
	g := newTestGrader(f)
	q := model.Question{ID: 1, Type: model.QuestionDescriptive, MaxPoints: 10}

	for _, answer := range []string{"", "  ", "ab", " a \n"} {
		res := g.GradeAnswer(context.Background(), q, answer)
		if res.Score != 0 {
			t.Errorf("answer %q: score = %d, want 0", answer, res.Score)
		}
		if res.Feedback == "" {
			t.Errorf("answer %q: feedback missing", answer)
		}
	}
	if n := f.calls.relevance.Load(); n != 0 {
		t.Errorf("relevance called %d times for empty answers, want 0", n)
	}
	if n := f.calls.marks.Load(); n != 0 {
		t.Errorf("marks called %d times for empty answers, want 0", n)
	}
}

func TestGradeAnswerMCQ(t *testing.T) {
	f := &fakeBackends{}
	g := newTestGrader(f)
	q := model.Question{ID: 1, Type: model.QuestionMCQ, CanonicalAnswer: "Amritsar", MaxPoints: 5}

	res := g.GradeAnswer(context.Background(), q, "Amritsar")
	if res.Score != 5 {
		t.Errorf("correct MCQ score = %d, want 5", res.Score)
	}

	res = g.GradeAnswer(context.Background(), q, " Amritsar \n")
	if res.Score != 5 {
		t.Errorf("whitespace-padded MCQ score = %d, want 5", res.Score)
	}

	res = g.GradeAnswer(context.Background(), q, "Delhi")
	if res.Score != 0 {
		t.Errorf("wrong MCQ score = %d, want 0", res.Score)
	}

	// MCQ grading is purely deterministic.
	if n := f.calls.relevance.Load(); n != 0 {
		t.Errorf("relevance called %d times for MCQ, want 0", n)
	}
	if n := f.calls.marks.Load() + f.calls.pov.Load(); n != 0 {
		t.Errorf("AI backends called %d times for MCQ, want 0", n)
	}
}

func TestGradeAnswerIrrelevant(t *testing.T) {
	f := &fakeBackends{
		relevanceFn: func(model.Question, string) (model.RelevanceResult, error) {
			return model.RelevanceResult{Score: 10, QuestionTopic: "Indian history", AnswerTopic: "football"}, nil
		},
	}
	g := newTestGrader(f)
	q := model.Question{ID: 1, Type: model.QuestionDescriptive, MaxPoints: 10}

	res := g.GradeAnswer(context.Background(), q, "Football is played with eleven players per side.")
	if res.Score != 0 {
		t.Errorf("score = %d, want 0", res.Score)
	}
	if !res.Flags.IrrelevantAnswer {
		t.Error("irrelevant answer flag not set")
	}
	if !strings.Contains(res.Feedback, "Indian history") || !strings.Contains(res.Feedback, "football") {
		t.Errorf("feedback %q does not name both topics", res.Feedback)
	}
	if n := f.calls.marks.Load(); n != 0 {
		t.Errorf("marks called %d times after irrelevance, want 0", n)
	}
}

func TestGradeAnswerRelevanceFailOpen(t *testing.T) {
	f := &fakeBackends{
		relevanceFn: func(model.Question, string) (model.RelevanceResult, error) {
			return model.RelevanceResult{}, errors.New("backend down")
		},
		marksFn: func(q model.Question, _ string) (model.MarksDistribution, error) {
			return fullMarks(q.MaxPoints), nil
		},
	}
	g := newTestGrader(f)
	q := model.Question{
		ID: 1, Type: model.QuestionDescriptive, MaxPoints: 10,
		MandatoryKeywords: []string{"cell"},
	}

	res := g.GradeAnswer(context.Background(), q, "The cell is the basic structural unit of life.")
	if res.Flags.IrrelevantAnswer {
		t.Error("relevance failure must fail open, not flag irrelevance")
	}
	if res.Score == 0 {
		t.Error("fail-open grading produced a zero score")
	}
	if res.RelevanceScore != 70 {
		t.Errorf("degraded relevance score = %d, want 70", res.RelevanceScore)
	}
}

func TestGradeAnswerDescriptiveFullCredit(t *testing.T) {
	f := &fakeBackends{
		marksFn: func(q model.Question, _ string) (model.MarksDistribution, error) {
			return fullMarks(q.MaxPoints), nil
		},
		pointsFn: func(model.Question, string) ([]model.PointValidation, error) {
			return []model.PointValidation{
				{Point: "definition", Covered: true, Depth: model.DepthHigh},
				{Point: "process", Covered: true, Depth: model.DepthHigh},
			}, nil
		},
	}
	g := newTestGrader(f)
	q := model.Question{
		ID: 1, Type: model.QuestionDescriptive, MaxPoints: 10,
		MandatoryKeywords:  []string{"chlorophyll", "glucose"},
		SupportingKeywords: []string{"sunlight"},
		MinPointsRequired:  2,
	}
	answer := "Photosynthesis uses chlorophyll to capture sunlight and produces glucose " +
		"through a chain of light dependent and light independent reactions in the chloroplast. " +
		"Water molecules are split to release oxygen while carbon dioxide is fixed into sugars " +
		"during the final stage of the overall process."

	res := g.GradeAnswer(context.Background(), q, answer)
	// 0.40*10 + 0.15*10 + 0.25*10 + (0.05+0.15)*10 = 10.
	if res.Score != 10 {
		t.Errorf("score = %d, want 10", res.Score)
	}
	if len(res.Points) != 2 {
		t.Errorf("points = %+v, want 2 entries", res.Points)
	}
	if res.Keywords == nil || res.Keywords.MatchPercent != 100 {
		t.Errorf("keywords = %+v, want full match", res.Keywords)
	}
}

func TestGradeAnswerZeroMandatoryCap(t *testing.T) {
	// Scenario: full AI-reported marks cannot beat the zero-mandatory cap.
	f := &fakeBackends{
		marksFn: func(q model.Question, _ string) (model.MarksDistribution, error) {
			return fullMarks(q.MaxPoints), nil
		},
	}
	g := newTestGrader(f)
	q := model.Question{
		ID: 1, Type: model.QuestionDescriptive, MaxPoints: 20,
		MandatoryKeywords: []string{"Salt March", "Gandhi"},
	}
	answer := strings.Repeat("The protest movement spread across the whole country that year. ", 15)

	res := g.GradeAnswer(context.Background(), q, answer)
	if res.Score > 3 { // round(0.15 * 20)
		t.Errorf("score = %d, want at most 3 with zero mandatory keywords", res.Score)
	}
}

func TestGradeAnswerPartialBackendFailure(t *testing.T) {
	// Marks and POV fail; required points succeed. The answer still gets
	// its keyword and concept components.
	f := &fakeBackends{
		marksFn: func(model.Question, string) (model.MarksDistribution, error) {
			return model.MarksDistribution{}, errors.New("timeout")
		},
		povFn: func(string) (float64, error) {
			return 0, errors.New("timeout")
		},
		pointsFn: func(model.Question, string) ([]model.PointValidation, error) {
			return []model.PointValidation{{Point: "definition", Covered: true, Depth: model.DepthHigh}}, nil
		},
	}
	g := newTestGrader(f)
	q := model.Question{
		ID: 1, Type: model.QuestionDescriptive, MaxPoints: 10,
		MandatoryKeywords: []string{"cell"},
		MinPointsRequired: 1,
	}

	res := g.GradeAnswer(context.Background(), q, "A cell is the smallest structural and functional living unit of every known organism.")
	// 0.40*10*1 + 0.25*10*1 = 6.5, no caps fire.
	if res.Score != 7 {
		t.Errorf("score = %d, want 7", res.Score)
	}
	if res.Flags.LowPersonalVoice {
		t.Error("failed POV call must not raise the low personal voice flag")
	}
}

func TestGradeAnswerLowPOVFlag(t *testing.T) {
	f := &fakeBackends{
		povFn: func(string) (float64, error) { return 20, nil },
	}
	g := newTestGrader(f)
	q := model.Question{
		ID: 1, Type: model.QuestionDescriptive, MaxPoints: 10,
		MandatoryKeywords: []string{"cell"},
	}

	res := g.GradeAnswer(context.Background(), q, "A cell is the smallest living unit.")
	if !res.Flags.LowPersonalVoice {
		t.Error("POV below threshold must raise the low personal voice flag")
	}
}

func TestGradeAnswerNumerical(t *testing.T) {
	t.Run("backend failure defaults to zero", func(t *testing.T) {
		f := &fakeBackends{
			numericalFn: func(model.Question, string) (model.NumericalValidation, error) {
				return model.NumericalValidation{}, errors.New("parse error")
			},
		}
		g := newTestGrader(f)
		q := model.Question{ID: 1, Type: model.QuestionNumerical, MaxPoints: 10}

		res := g.GradeAnswer(context.Background(), q, "v = u + at, so v = 25 m/s")
		if res.Score != 0 {
			t.Errorf("score = %d, want 0", res.Score)
		}
		if res.Numerical == nil {
			t.Fatal("numerical validation missing from result")
		}
		if res.Numerical.FormulaCorrect || res.Numerical.StepsValid || res.Numerical.FinalValueCorrect {
			t.Errorf("failed validation must default all-false: %+v", res.Numerical)
		}
	})

	t.Run("partial marks pass through clamped", func(t *testing.T) {
		f := &fakeBackends{
			numericalFn: func(model.Question, string) (model.NumericalValidation, error) {
				return model.NumericalValidation{FormulaCorrect: true, PartialMarks: 6.4}, nil
			},
		}
		g := newTestGrader(f)
		q := model.Question{ID: 1, Type: model.QuestionNumerical, MaxPoints: 10}

		res := g.GradeAnswer(context.Background(), q, "v = u + at, so v = 25 m/s")
		if res.Score != 6 {
			t.Errorf("score = %d, want 6", res.Score)
		}
	})
}

func TestGradeAnswerDiagram(t *testing.T) {
	f := &fakeBackends{
		diagramFn: func(q model.Question, _ string) (model.DiagramEvaluation, error) {
			de := model.EmptyDiagramEvaluation(q.MaxPoints, nil)
			de.ComponentPresence.Awarded = de.ComponentPresence.Max
			de.Total.Awarded = de.ComponentPresence.Max
			de.MissingComponents = []string{"anode"}
			return de, nil
		},
	}
	g := newTestGrader(f)
	q := model.Question{
		ID: 1, Type: model.QuestionDiagram, MaxPoints: 8,
		MandatoryKeywords: []string{"cathode", "anode"},
	}

	res := g.GradeAnswer(context.Background(), q, "The diagram shows the cathode and the electrolyte flow.")
	if res.Score != 3 { // round(0.375 * 8)
		t.Errorf("score = %d, want 3", res.Score)
	}
	if res.Diagram == nil {
		t.Fatal("diagram evaluation missing from result")
	}
	if !strings.Contains(res.Feedback, "anode") {
		t.Errorf("feedback %q does not name the missing component", res.Feedback)
	}
	if res.Keywords == nil {
		t.Error("informational keyword analysis missing from diagram result")
	}
}

func TestGradeAnswerClampInvariant(t *testing.T) {
	// Hostile backends reporting out-of-range values must never push the
	// score outside [0, maxPoints].
	f := &fakeBackends{
		marksFn: func(q model.Question, _ string) (model.MarksDistribution, error) {
			m := fullMarks(q.MaxPoints)
			m.Total.Awarded = 1000
			return m, nil
		},
		numericalFn: func(model.Question, string) (model.NumericalValidation, error) {
			return model.NumericalValidation{PartialMarks: -50}, nil
		},
	}
	g := newTestGrader(f)

	for _, qt := range []model.QuestionType{model.QuestionDescriptive, model.QuestionNumerical} {
		q := model.Question{ID: 1, Type: qt, MaxPoints: 10, MandatoryKeywords: []string{"cell"}}
		res := g.GradeAnswer(context.Background(), q, "The cell divides during mitosis.")
		if res.Score < 0 || res.Score > q.MaxPoints {
			t.Errorf("%s: score %d outside [0, %d]", qt, res.Score, q.MaxPoints)
		}
	}
}
