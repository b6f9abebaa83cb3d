package grader

import "math"

// Cap and penalty identifiers. Each value doubles as the i18n message ID
// for the feedback line explaining why the rule fired.
const (
	capNoKeywords        = "cap.no_keywords"
	capZeroMandatory     = "cap.zero_mandatory"
	capLowMandatory      = "cap.low_mandatory"
	capTooShort          = "cap.too_short"
	capPointsShort       = "cap.points_short"
	penaltyStuffing      = "penalty.keyword_stuffing"
	penaltyBorderlineRel = "penalty.borderline_relevance"
)

// coverageStats carries the deterministic evidence the cap pipeline needs.
type coverageStats struct {
	mandatoryTotal  int
	mandatoryFound  int
	supportingTotal int
	supportingFound int
	pointsRequired  int
	pointsCovered   int
	tooShort        bool
	stuffing        bool
	relevance       int
}

func (s coverageStats) mandatoryCoverage() float64 {
	if s.mandatoryTotal == 0 {
		return 0
	}
	return float64(s.mandatoryFound) / float64(s.mandatoryTotal)
}

func (s coverageStats) supportingCoverage() float64 {
	if s.supportingTotal == 0 {
		return 0
	}
	return float64(s.supportingFound) / float64(s.supportingTotal)
}

// combinedCoverage is the fraction of all declared keywords that matched,
// used to scale how much the AI quality judgment is trusted.
func (s coverageStats) combinedCoverage() float64 {
	total := s.mandatoryTotal + s.supportingTotal
	if total == 0 {
		return 0
	}
	return float64(s.mandatoryFound+s.supportingFound) / float64(total)
}

// applyCaps runs the ordered cap/penalty sequence over a raw score. Caps are
// ceilings: a later cap can only lower a score already capped by an earlier
// rule. The stuffing penalty subtracts, and a borderline relevance score
// halves whatever remains. The returned score is clamped to [0, maxPoints].
// The second return value lists the rules that fired, in order.
func applyCaps(raw float64, maxPoints int, st coverageStats) (float64, []string) {
	mp := float64(maxPoints)
	score := raw
	var fired []string

	limit := func(frac float64, id string) {
		if ceiling := frac * mp; score > ceiling {
			score = ceiling
			fired = append(fired, id)
		}
	}

	if st.mandatoryTotal == 0 && st.supportingTotal == 0 {
		limit(0.70, capNoKeywords)
	}
	if st.mandatoryTotal > 0 && st.mandatoryFound == 0 {
		limit(0.15, capZeroMandatory)
	}
	if cov := st.mandatoryCoverage(); cov > 0 && cov < 0.5 {
		limit(0.40, capLowMandatory)
	}
	if st.tooShort {
		limit(0.50, capTooShort)
	}
	if st.pointsRequired > 0 && st.pointsCovered < st.pointsRequired {
		limit(0.60, capPointsShort)
	}
	if st.stuffing {
		score -= 0.15 * mp
		fired = append(fired, penaltyStuffing)
	}
	if st.relevance >= 40 && st.relevance < 50 {
		score *= 0.5
		fired = append(fired, penaltyBorderlineRel)
	}

	return math.Min(math.Max(score, 0), mp), fired
}

// clampScore rounds a raw score to the nearest integer and bounds it to
// [0, maxPoints]. Every grading path ends here.
func clampScore(v float64, maxPoints int) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > maxPoints {
		return maxPoints
	}
	return n
}
