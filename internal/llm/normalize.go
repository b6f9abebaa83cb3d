package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gradepipe/gradepipe/internal/model"
)

// The backends return loosely typed JSON: fields go missing, numbers arrive
// as strings, booleans as words. Every consumed field is coerced into the
// bounded model structures here, at the adapter boundary, before any scoring
// arithmetic sees it.

// totalTolerance: a backend-reported marks total further than this from the
// sum of the parts is discarded and recomputed.
const totalTolerance = 0.25

// flexFloat decodes a JSON number, a numeric string, or anything else as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = 0
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			*f = flexFloat(v)
		}
	}
	return nil
}

// flexBool decodes a JSON bool, a "true"/"false" string, or a number
// (nonzero is true); anything else is false.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	*f = false
	s := strings.TrimSpace(string(b))
	switch s {
	case "true":
		*f = true
		return nil
	case "false", "null", "":
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = v != 0
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		switch strings.ToLower(strings.TrimSpace(str)) {
		case "true", "yes", "1":
			*f = true
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

type relevancePayload struct {
	Score         flexFloat `json:"score"`
	QuestionTopic string    `json:"question_topic"`
	AnswerTopic   string    `json:"answer_topic"`
}

func (p relevancePayload) normalize() model.RelevanceResult {
	score := int(clamp(float64(p.Score), 0, 100))
	return model.RelevanceResult{
		Score:         score,
		QuestionTopic: strings.TrimSpace(p.QuestionTopic),
		AnswerTopic:   strings.TrimSpace(p.AnswerTopic),
		Relevant:      score >= 40,
	}
}

type marksPayload struct {
	ConceptAccuracy  flexFloat `json:"concept_accuracy"`
	LogicalReasoning flexFloat `json:"logical_reasoning"`
	PointsCoverage   flexFloat `json:"points_coverage"`
	KeywordAccuracy  flexFloat `json:"keyword_accuracy"`
	Structure        flexFloat `json:"structure"`
	Length           flexFloat `json:"length"`
	OriginalThought  flexFloat `json:"original_thought"`
	Total            flexFloat `json:"total"`
}

func (p marksPayload) normalize(maxPoints int) model.MarksDistribution {
	m := model.EmptyMarksDistribution(maxPoints)

	award := func(s *model.SubScore, v flexFloat) {
		s.Awarded = clamp(float64(v), 0, s.Max)
	}
	award(&m.ConceptAccuracy, p.ConceptAccuracy)
	award(&m.LogicalReasoning, p.LogicalReasoning)
	award(&m.PointsCoverage, p.PointsCoverage)
	award(&m.KeywordAccuracy, p.KeywordAccuracy)
	award(&m.Structure, p.Structure)
	award(&m.Length, p.Length)
	award(&m.OriginalThought, p.OriginalThought)

	sum := m.ConceptAccuracy.Awarded + m.LogicalReasoning.Awarded +
		m.PointsCoverage.Awarded + m.KeywordAccuracy.Awarded +
		m.Structure.Awarded + m.Length.Awarded + m.OriginalThought.Awarded

	reported := clamp(float64(p.Total), 0, m.Total.Max)
	if math.Abs(reported-sum) > totalTolerance {
		m.Total.Awarded = sum
	} else {
		m.Total.Awarded = reported
	}
	return m
}

type pointPayload struct {
	Point   string   `json:"point"`
	Covered flexBool `json:"covered"`
	Depth   string   `json:"depth"`
}

type pointsPayload struct {
	Points []pointPayload `json:"points"`
}

func (p pointsPayload) normalize(minRequired int) []model.PointValidation {
	var out []model.PointValidation
	for _, pt := range p.Points {
		out = append(out, model.PointValidation{
			Point:   strings.TrimSpace(pt.Point),
			Covered: bool(pt.Covered),
			Depth:   parseDepth(pt.Depth),
		})
	}
	// The backend must report at least minRequired points; pad any shortfall
	// with uncovered placeholders so the coverage cap still applies.
	for len(out) < minRequired {
		out = append(out, model.PointValidation{
			Point: fmt.Sprintf("Required point %d", len(out)+1),
			Depth: model.DepthLow,
		})
	}
	return out
}

func parseDepth(s string) model.DepthTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return model.DepthHigh
	case "medium", "mid":
		return model.DepthMedium
	default:
		return model.DepthLow
	}
}

type stepPayload struct {
	Step    string   `json:"step"`
	Correct flexBool `json:"correct"`
	Comment string   `json:"comment"`
}

type numericalPayload struct {
	FormulaCorrect    flexBool      `json:"formula_correct"`
	StepsValid        flexBool      `json:"steps_valid"`
	FinalValueCorrect flexBool      `json:"final_value_correct"`
	PartialMarks      flexFloat     `json:"partial_marks"`
	Steps             []stepPayload `json:"steps"`
}

func (p numericalPayload) normalize(maxPoints int) model.NumericalValidation {
	nv := model.NumericalValidation{
		FormulaCorrect:    bool(p.FormulaCorrect),
		StepsValid:        bool(p.StepsValid),
		FinalValueCorrect: bool(p.FinalValueCorrect),
		PartialMarks:      clamp(float64(p.PartialMarks), 0, float64(maxPoints)),
	}
	for _, s := range p.Steps {
		nv.Steps = append(nv.Steps, model.StepCheck{
			Step:    strings.TrimSpace(s.Step),
			Correct: bool(s.Correct),
			Comment: strings.TrimSpace(s.Comment),
		})
	}
	return nv
}

type diagramPayload struct {
	ComponentPresence    flexFloat `json:"component_presence"`
	LabelAccuracy        flexFloat `json:"label_accuracy"`
	LogicalFlow          flexFloat `json:"logical_flow"`
	ExplanationAlignment flexFloat `json:"explanation_alignment"`
	DetectedComponents   []string  `json:"detected_components"`
	MissingComponents    []string  `json:"missing_components"`
}

func (p diagramPayload) normalize(maxPoints int, requiredComponents []string) model.DiagramEvaluation {
	de := model.EmptyDiagramEvaluation(maxPoints, nil)

	award := func(s *model.SubScore, v flexFloat) {
		s.Awarded = clamp(float64(v), 0, s.Max)
	}
	award(&de.ComponentPresence, p.ComponentPresence)
	award(&de.LabelAccuracy, p.LabelAccuracy)
	award(&de.LogicalFlow, p.LogicalFlow)
	award(&de.ExplanationAlignment, p.ExplanationAlignment)
	de.Total.Awarded = de.ComponentPresence.Awarded + de.LabelAccuracy.Awarded +
		de.LogicalFlow.Awarded + de.ExplanationAlignment.Awarded

	de.DetectedComponents = cleanStrings(p.DetectedComponents)
	de.MissingComponents = cleanStrings(p.MissingComponents)
	if len(de.MissingComponents) == 0 && len(requiredComponents) > 0 {
		de.MissingComponents = missingFrom(requiredComponents, de.DetectedComponents)
	}
	return de
}

// missingFrom derives the missing component list when the backend omits it:
// every required component with no case-insensitive match among the
// detected ones.
func missingFrom(required, detected []string) []string {
	var missing []string
	for _, r := range required {
		found := false
		for _, d := range detected {
			if strings.EqualFold(strings.TrimSpace(r), strings.TrimSpace(d)) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, r)
		}
	}
	return missing
}

func cleanStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type povPayload struct {
	POVScore flexFloat `json:"pov_score"`
}

type originalityPayload struct {
	AIGeneratedProbability flexFloat `json:"ai_generated_probability"`
	POVPresence            flexFloat `json:"pov_presence"`
	Originality            flexFloat `json:"originality"`
	StyleInconsistent      flexBool  `json:"style_inconsistent"`
}

func (p originalityPayload) normalize() model.OriginalityMetrics {
	return model.OriginalityMetrics{
		AIGeneratedProbability: clamp(float64(p.AIGeneratedProbability), 0, 100),
		POVPresence:            clamp(float64(p.POVPresence), 0, 100),
		Originality:            clamp(float64(p.Originality), 0, 100),
		StyleInconsistent:      bool(p.StyleInconsistent),
	}
}

type careerFieldPayload struct {
	Field      string    `json:"field"`
	Confidence flexFloat `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
}

type careerPayload struct {
	Fields  []careerFieldPayload `json:"fields"`
	Summary string               `json:"summary"`
}

func (p careerPayload) normalize() model.CareerMapping {
	cm := model.CareerMapping{Summary: strings.TrimSpace(p.Summary)}
	for _, f := range p.Fields {
		name := strings.TrimSpace(f.Field)
		if name == "" {
			continue
		}
		cm.Fields = append(cm.Fields, model.CareerField{
			Field:      name,
			Confidence: clamp(float64(f.Confidence), 0, 100),
			Reasoning:  strings.TrimSpace(f.Reasoning),
		})
	}
	return cm
}
