package grader

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/gradepipe/gradepipe/internal/model"
)

// minOriginalityRunes: descriptive answers at or below this trimmed length
// carry too little signal for style analysis and are excluded.
const minOriginalityRunes = 20

// careerSubjects are the subject tags that trigger attempt-level career
// mapping, matched case-insensitively as substrings.
var careerSubjects = []string{"career", "industry", "ai", "artificial intelligence"}

// defaultOriginality is the maximally trusting default used when no
// descriptive answers qualify or the backend fails: absence of evidence is
// not evidence of misconduct.
func defaultOriginality() model.OriginalityMetrics {
	return model.OriginalityMetrics{
		AIGeneratedProbability: 0,
		POVPresence:            100,
		Originality:            100,
		StyleInconsistent:      false,
	}
}

// AggregateAttempt post-processes all per-answer results of one attempt:
// a single cross-answer originality call, an optional career mapping, and
// the attempt-wide flag rollup. Backend failures leave safe defaults; the
// attempt itself never fails.
func (g *Grader) AggregateAttempt(ctx context.Context, questions []model.Question, answers map[int64]string, results []model.GradingResult) model.AttemptSummary {
	byID := make(map[int64]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var samples []string
	for id, answer := range answers {
		q, ok := byID[id]
		if !ok || !q.Type.IsDescriptive() {
			continue
		}
		trimmed := strings.TrimSpace(answer)
		if utf8.RuneCountInString(trimmed) > minOriginalityRunes {
			samples = append(samples, trimmed)
		}
	}

	careerPrompts, careerAnswers := careerSubset(questions, answers)

	originality := defaultOriginality()
	var career *model.CareerMapping

	// The two attempt-level calls are independent. Failures are absorbed
	// inside each closure, so the group never cancels a sibling.
	var eg errgroup.Group
	eg.Go(func() error {
		if len(samples) == 0 {
			return nil
		}
		// Style consistency and AI likelihood are only meaningful as a
		// comparison across samples, so this is one call over the whole
		// set, never per answer.
		om, err := g.reasoning.AnalyzeOriginality(ctx, samples)
		if err != nil {
			slog.Warn("originality analysis failed, using trusting default", "error", err)
			return nil
		}
		originality = om
		return nil
	})
	eg.Go(func() error {
		if len(careerPrompts) == 0 {
			return nil
		}
		cm, err := g.reasoning.GenerateCareerMapping(ctx, careerPrompts, careerAnswers)
		if err != nil {
			slog.Warn("career mapping failed, leaving absent", "error", err)
			return nil
		}
		career = &cm
		return nil
	})
	_ = eg.Wait()

	return model.AttemptSummary{
		Originality: originality,
		Career:      career,
		Flags:       rollUpFlags(results, originality),
	}
}

// careerSubset selects the prompts and answers of questions whose subject
// tag matches the career topic filter.
func careerSubset(questions []model.Question, answers map[int64]string) (prompts, subset []string) {
	for _, q := range questions {
		if !careerSubject(q.Subject) {
			continue
		}
		answer, ok := answers[q.ID]
		if !ok || strings.TrimSpace(answer) == "" {
			continue
		}
		prompts = append(prompts, q.Text)
		subset = append(subset, answer)
	}
	return prompts, subset
}

func careerSubject(subject string) bool {
	s := strings.ToLower(subject)
	if s == "" {
		return false
	}
	for _, topic := range careerSubjects {
		if strings.Contains(s, topic) {
			return true
		}
	}
	return false
}

// rollUpFlags derives the attempt-wide integrity flags. AI usage needs both
// high AI likelihood and corroborating low personal voice; either signal
// alone is not sufficient.
func rollUpFlags(results []model.GradingResult, om model.OriginalityMetrics) model.IntegrityFlags {
	flags := model.IntegrityFlags{
		AIUsageSuspected:   om.AIGeneratedProbability > 70 && om.POVPresence < 40,
		StyleInconsistency: om.StyleInconsistent,
		LowPersonalVoice:   om.POVPresence < 40,
	}
	for _, r := range results {
		flags.IrrelevantAnswer = flags.IrrelevantAnswer || r.Flags.IrrelevantAnswer
		flags.KeywordPenalty = flags.KeywordPenalty || r.Flags.KeywordPenalty
		flags.TimeAnomaly = flags.TimeAnomaly || r.Flags.TimeAnomaly
	}
	return flags
}
