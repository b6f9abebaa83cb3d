package grader

import (
	"context"
	"errors"
	"testing"

	"github.com/gradepipe/gradepipe/internal/model"
)

func TestAggregateAttemptNoDescriptiveAnswers(t *testing.T) {
	f := &fakeBackends{}
	g := newTestGrader(f)

	questions := []model.Question{
		{ID: 1, Type: model.QuestionMCQ, Subject: "History"},
		{ID: 2, Type: model.QuestionNumerical, Subject: "Physics"},
	}
	answers := map[int64]string{1: "Amritsar", 2: "v = 25 m/s"}

	sum := g.AggregateAttempt(context.Background(), questions, answers, nil)
	if sum.Originality.AIGeneratedProbability != 0 {
		t.Errorf("AIGeneratedProbability = %v, want 0", sum.Originality.AIGeneratedProbability)
	}
	if sum.Originality.StyleInconsistent {
		t.Error("StyleInconsistent must default false")
	}
	if n := f.calls.originality.Load(); n != 0 {
		t.Errorf("originality called %d times with no descriptive answers, want 0", n)
	}
}

func TestAggregateAttemptShortAnswersExcluded(t *testing.T) {
	f := &fakeBackends{}
	g := newTestGrader(f)

	questions := []model.Question{
		{ID: 1, Type: model.QuestionDescriptive, Subject: "History"},
	}
	// 20 runes or fewer carry no style signal.
	answers := map[int64]string{1: "Gandhi led it."}

	g.AggregateAttempt(context.Background(), questions, answers, nil)
	if n := f.calls.originality.Load(); n != 0 {
		t.Errorf("originality called %d times for a too-short sample, want 0", n)
	}
}

func TestAggregateAttemptOriginalitySingleCall(t *testing.T) {
	var gotSamples []string
	f := &fakeBackends{
		originalityFn: func(answers []string) (model.OriginalityMetrics, error) {
			gotSamples = answers
			return model.OriginalityMetrics{AIGeneratedProbability: 55, POVPresence: 60, Originality: 70}, nil
		},
	}
	g := newTestGrader(f)

	questions := []model.Question{
		{ID: 1, Type: model.QuestionDescriptive, Subject: "History"},
		{ID: 2, Type: model.QuestionShortAnswer, Subject: "History"},
		{ID: 3, Type: model.QuestionMCQ, Subject: "History"},
	}
	answers := map[int64]string{
		1: "The movement drew millions of ordinary people into organized civil disobedience.",
		2: "It began with the coastal march in nineteen thirty and spread inland.",
		3: "Amritsar",
	}

	sum := g.AggregateAttempt(context.Background(), questions, answers, nil)
	if n := f.calls.originality.Load(); n != 1 {
		t.Fatalf("originality called %d times, want exactly 1", n)
	}
	if len(gotSamples) != 2 {
		t.Errorf("got %d samples, want 2 (MCQ excluded)", len(gotSamples))
	}
	if sum.Originality.AIGeneratedProbability != 55 {
		t.Errorf("AIGeneratedProbability = %v, want 55", sum.Originality.AIGeneratedProbability)
	}
}

func TestAggregateAttemptAIFlagNeedsBothSignals(t *testing.T) {
	tests := []struct {
		name string
		om   model.OriginalityMetrics
		want bool
	}{
		{"high probability and low voice", model.OriginalityMetrics{AIGeneratedProbability: 80, POVPresence: 20}, true},
		{"high probability alone", model.OriginalityMetrics{AIGeneratedProbability: 80, POVPresence: 60}, false},
		{"low voice alone", model.OriginalityMetrics{AIGeneratedProbability: 30, POVPresence: 20}, false},
		{"both at boundary", model.OriginalityMetrics{AIGeneratedProbability: 70, POVPresence: 40}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := rollUpFlags(nil, tt.om)
			if flags.AIUsageSuspected != tt.want {
				t.Errorf("AIUsageSuspected = %v, want %v", flags.AIUsageSuspected, tt.want)
			}
		})
	}
}

func TestAggregateAttemptFlagRollup(t *testing.T) {
	results := []model.GradingResult{
		{QuestionID: 1, Flags: model.IntegrityFlags{IrrelevantAnswer: true}},
		{QuestionID: 2, Flags: model.IntegrityFlags{KeywordPenalty: true}},
		{QuestionID: 3},
	}
	flags := rollUpFlags(results, defaultOriginality())
	if !flags.IrrelevantAnswer {
		t.Error("IrrelevantAnswer not rolled up")
	}
	if !flags.KeywordPenalty {
		t.Error("KeywordPenalty not rolled up")
	}
	if flags.TimeAnomaly {
		t.Error("TimeAnomaly set without any per-answer signal")
	}
}

func TestAggregateAttemptCareerMapping(t *testing.T) {
	t.Run("career subject triggers mapping", func(t *testing.T) {
		var gotPrompts, gotAnswers []string
		f := &fakeBackends{
			careerFn: func(prompts, answers []string) (model.CareerMapping, error) {
				gotPrompts, gotAnswers = prompts, answers
				return model.CareerMapping{Fields: []model.CareerField{{Field: "Data Science", Confidence: 80}}}, nil
			},
		}
		g := newTestGrader(f)

		questions := []model.Question{
			{ID: 1, Text: "Which career interests you and why?", Type: model.QuestionDescriptive, Subject: "Career Guidance"},
			{ID: 2, Text: "Explain mitosis.", Type: model.QuestionDescriptive, Subject: "Biology"},
		}
		answers := map[int64]string{
			1: "I want to work with data because I enjoy finding patterns in messy information.",
			2: "Mitosis is the division of a cell into two identical daughter cells over several phases.",
		}

		sum := g.AggregateAttempt(context.Background(), questions, answers, nil)
		if sum.Career == nil {
			t.Fatal("career mapping absent")
		}
		if len(sum.Career.Fields) != 1 || sum.Career.Fields[0].Field != "Data Science" {
			t.Errorf("career = %+v", sum.Career)
		}
		if len(gotPrompts) != 1 || len(gotAnswers) != 1 {
			t.Errorf("career inputs = %v / %v, want only the career question", gotPrompts, gotAnswers)
		}
	})

	t.Run("no career subject skips mapping", func(t *testing.T) {
		f := &fakeBackends{}
		g := newTestGrader(f)
		questions := []model.Question{
			{ID: 1, Type: model.QuestionDescriptive, Subject: "Biology"},
		}
		answers := map[int64]string{1: "Mitosis is the division of a cell into two identical daughter cells."}

		sum := g.AggregateAttempt(context.Background(), questions, answers, nil)
		if sum.Career != nil {
			t.Errorf("career = %+v, want nil", sum.Career)
		}
		if n := f.calls.career.Load(); n != 0 {
			t.Errorf("career called %d times, want 0", n)
		}
	})
}

func TestAggregateAttemptBackendFailuresAreSafe(t *testing.T) {
	f := &fakeBackends{
		originalityFn: func([]string) (model.OriginalityMetrics, error) {
			return model.OriginalityMetrics{}, errors.New("backend down")
		},
		careerFn: func([]string, []string) (model.CareerMapping, error) {
			return model.CareerMapping{}, errors.New("backend down")
		},
	}
	g := newTestGrader(f)

	questions := []model.Question{
		{ID: 1, Type: model.QuestionDescriptive, Subject: "AI and Industry"},
	}
	answers := map[int64]string{
		1: "Artificial intelligence will reshape how routine analytical work is organized.",
	}

	sum := g.AggregateAttempt(context.Background(), questions, answers, nil)
	if sum.Originality != defaultOriginality() {
		t.Errorf("originality = %+v, want trusting default", sum.Originality)
	}
	if sum.Career != nil {
		t.Errorf("career = %+v, want absent after failure", sum.Career)
	}
	if sum.Flags.AIUsageSuspected || sum.Flags.LowPersonalVoice {
		t.Errorf("flags = %+v, failure must not raise flags", sum.Flags)
	}
}

func TestCareerSubject(t *testing.T) {
	tests := []struct {
		subject string
		want    bool
	}{
		{"Career Guidance", true},
		{"AI and Society", true},
		{"Artificial Intelligence", true},
		{"Industry 4.0", true},
		{"Biology", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := careerSubject(tt.subject); got != tt.want {
			t.Errorf("careerSubject(%q) = %v, want %v", tt.subject, got, tt.want)
		}
	}
}
