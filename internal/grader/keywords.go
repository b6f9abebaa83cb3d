package grader

import (
	"math"
	"strings"

	"github.com/gradepipe/gradepipe/internal/model"
)

// stuffingDensityThreshold is the keyword density (percent of words) above
// which an answer is flagged as keyword-stuffed. Changing it changes the
// comparability of historical scores, so it is a constant, not config.
const stuffingDensityThreshold = 8.0

// tooShortFraction: an answer with fewer words than this fraction of the
// question's minimum word count is "too short" (a cap trigger, never a
// rejection).
const tooShortFraction = 0.5

// AnalyzeKeywords performs the deterministic keyword scoring primitive:
// case-insensitive substring search of each mandatory and supporting keyword
// inside the answer. It has no backend dependency and is reproducible
// bit-for-bit, which makes it the anchor the AI-derived scores are capped
// against.
func AnalyzeKeywords(answer string, mandatory, supporting []string) model.KeywordAnalysis {
	lower := strings.ToLower(answer)
	words := wordCount(answer)

	var ka model.KeywordAnalysis
	occurrences := 0
	found := 0

	match := func(kw string) model.KeywordMatch {
		n := 0
		if k := strings.ToLower(strings.TrimSpace(kw)); k != "" {
			n = strings.Count(lower, k)
		}
		occurrences += n
		if n > 0 {
			found++
		}
		return model.KeywordMatch{Keyword: kw, Found: n > 0, Count: n}
	}

	for _, kw := range mandatory {
		ka.Mandatory = append(ka.Mandatory, match(kw))
	}
	for _, kw := range supporting {
		ka.Supporting = append(ka.Supporting, match(kw))
	}

	total := len(mandatory) + len(supporting)
	if total > 0 {
		ka.MatchPercent = round2(float64(found) / float64(total) * 100)
	}
	if words > 0 {
		ka.Density = round2(float64(occurrences) / float64(words) * 100)
	}
	ka.Stuffing = ka.Density > stuffingDensityThreshold
	return ka
}

// TooShort reports whether the answer's word count is below half the
// question's minimum word count. A zero minimum disables the check.
func TooShort(answer string, minWords int) bool {
	if minWords <= 0 {
		return false
	}
	return float64(wordCount(answer)) < tooShortFraction*float64(minWords)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func foundCount(matches []model.KeywordMatch) int {
	n := 0
	for _, m := range matches {
		if m.Found {
			n++
		}
	}
	return n
}
