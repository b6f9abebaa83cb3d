package prompts

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gradepipe/gradepipe/internal/model"
)

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

// Variant selects the grading tone for the marks distribution prompt.
type Variant string

const (
	// VariantStrict grades demandingly; used for core subjects.
	VariantStrict Variant = "strict"
	// VariantStandard is the default grading tone.
	VariantStandard Variant = "standard"
	// VariantLenient grades generously; used for electives.
	VariantLenient Variant = "lenient"
)

var validVariants = map[Variant]bool{
	VariantStrict:   true,
	VariantStandard: true,
	VariantLenient:  true,
}

// IsValidVariant checks whether a variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

var variantTone = map[Variant]string{
	VariantStrict:   "Grade strictly: award marks only for precise, complete statements.",
	VariantStandard: "Grade fairly: award marks for substantially correct statements.",
	VariantLenient:  "Grade generously: award marks when the intent is recognizably correct.",
}

// SanitizeAnswer strips instruction-injection markup from a student answer
// and truncates it before it is embedded into a prompt.
func SanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}

	return answer
}

// Relevance builds the system prompt for the relevance gate.
func Relevance(q model.Question) string {
	var sb strings.Builder
	sb.WriteString("You are a topic relevance checker for exam answers.\n\n")
	sb.WriteString("QUESTION: " + q.Text + "\n\n")
	sb.WriteString("Decide whether the student's answer addresses this question at all. ")
	sb.WriteString("Do not grade correctness, only topical relevance.\n\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"score": <0 to 100>, "question_topic": "<short topic of the question>", "answer_topic": "<short topic of the answer>"}`)
	sb.WriteString("\n")
	return sb.String()
}

// MarksDistribution builds the system prompt for the seven-dimension marks
// breakdown of a descriptive answer.
func MarksDistribution(variant Variant, q model.Question) string {
	mp := q.MaxPoints
	var sb strings.Builder
	sb.WriteString("You are an exam evaluator. Break down the student's answer into a marks distribution.\n\n")
	sb.WriteString("QUESTION: " + q.Text + "\n\n")
	sb.WriteString(fmt.Sprintf("MAX POINTS: %d\n\n", mp))
	if q.ExpectedStructure != "" {
		sb.WriteString("EXPECTED STRUCTURE: " + q.ExpectedStructure + "\n\n")
	}
	tone, ok := variantTone[variant]
	if !ok {
		tone = variantTone[VariantStandard]
	}
	sb.WriteString(tone + "\n\n")
	sb.WriteString("Award marks per dimension, each between 0 and its maximum:\n")
	sb.WriteString(fmt.Sprintf("- concept_accuracy: max %.2f\n", model.ShareConceptAccuracy*float64(mp)))
	sb.WriteString(fmt.Sprintf("- logical_reasoning: max %.2f\n", model.ShareLogicalReasoning*float64(mp)))
	sb.WriteString(fmt.Sprintf("- points_coverage: max %.2f\n", model.SharePointsCoverage*float64(mp)))
	sb.WriteString(fmt.Sprintf("- keyword_accuracy: max %.2f\n", model.ShareKeywordAccuracy*float64(mp)))
	sb.WriteString(fmt.Sprintf("- structure: max %.2f\n", model.ShareStructure*float64(mp)))
	sb.WriteString(fmt.Sprintf("- length: max %.2f\n", model.ShareLength*float64(mp)))
	sb.WriteString(fmt.Sprintf("- original_thought: max %.2f\n", model.ShareOriginalThought*float64(mp)))
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"concept_accuracy": <n>, "logical_reasoning": <n>, "points_coverage": <n>, "keyword_accuracy": <n>, "structure": <n>, "length": <n>, "original_thought": <n>, "total": <sum>}`)
	sb.WriteString("\n")
	return sb.String()
}

// RequiredPoints builds the system prompt for required conceptual point
// coverage.
func RequiredPoints(q model.Question) string {
	var sb strings.Builder
	sb.WriteString("You are an exam evaluator checking conceptual point coverage.\n\n")
	sb.WriteString("QUESTION: " + q.Text + "\n\n")
	sb.WriteString(fmt.Sprintf("Identify the %d most important conceptual points a complete answer must cover, ", q.MinPointsRequired))
	sb.WriteString("and for each decide whether the student's answer covers it and how deeply.\n\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"points": [{"point": "<description>", "covered": <true/false>, "depth": "<low|medium|high>"}]}`)
	sb.WriteString("\n")
	return sb.String()
}

// Numerical builds the system prompt for numerical answer validation.
func Numerical(q model.Question) string {
	var sb strings.Builder
	sb.WriteString("You are an exam evaluator for numerical problems.\n\n")
	sb.WriteString("QUESTION: " + q.Text + "\n\n")
	if q.CanonicalAnswer != "" {
		sb.WriteString("CORRECT ANSWER (not shown to student):\n" + q.CanonicalAnswer + "\n\n")
	}
	sb.WriteString(fmt.Sprintf("MAX POINTS: %d\n\n", q.MaxPoints))
	sb.WriteString("Check the formula used, the sequence of solution steps, and the final value. ")
	sb.WriteString("Award partial marks for correct intermediate work. ")
	sb.WriteString("A completely wrong or nonsensical answer gets zero partial marks and all booleans false.\n\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"formula_correct": <bool>, "steps_valid": <bool>, "final_value_correct": <bool>, "partial_marks": <0 to max>, "steps": [{"step": "<text>", "correct": <bool>, "comment": "<text>"}]}`)
	sb.WriteString("\n")
	return sb.String()
}

// Diagram builds the system prompt for diagram answer evaluation. Required
// components come from the question's mandatory keyword set.
func Diagram(q model.Question) string {
	mp := float64(q.MaxPoints)
	comp := model.ShareComponentPresence * mp
	label := model.ShareLabelAccuracy * mp
	flow := model.ShareLogicalFlow * mp
	align := mp - comp - label - flow

	var sb strings.Builder
	sb.WriteString("You are an exam evaluator for diagram descriptions.\n\n")
	sb.WriteString("QUESTION: " + q.Text + "\n\n")
	if len(q.MandatoryKeywords) > 0 {
		sb.WriteString("REQUIRED COMPONENTS: " + strings.Join(q.MandatoryKeywords, ", ") + "\n\n")
	}
	sb.WriteString("Award marks per dimension, each between 0 and its maximum:\n")
	sb.WriteString(fmt.Sprintf("- component_presence: max %.2f\n", comp))
	sb.WriteString(fmt.Sprintf("- label_accuracy: max %.2f\n", label))
	sb.WriteString(fmt.Sprintf("- logical_flow: max %.2f\n", flow))
	sb.WriteString(fmt.Sprintf("- explanation_alignment: max %.2f\n", align))
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"component_presence": <n>, "label_accuracy": <n>, "logical_flow": <n>, "explanation_alignment": <n>, "detected_components": ["<name>"], "missing_components": ["<name>"]}`)
	sb.WriteString("\n")
	return sb.String()
}

// PointOfView builds the system prompt for personal-voice detection.
func PointOfView() string {
	var sb strings.Builder
	sb.WriteString("You analyze writing style. Rate how much personal voice and point of view ")
	sb.WriteString("the following exam answer shows: first-person perspective, personal examples, ")
	sb.WriteString("individual opinions. 0 means fully impersonal, 100 means strongly personal.\n\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"pov_score": <0 to 100>}`)
	sb.WriteString("\n")
	return sb.String()
}

// Originality builds the system prompt for the cross-answer originality
// analysis of one attempt.
func Originality() string {
	var sb strings.Builder
	sb.WriteString("You analyze authorship signals across multiple exam answers written by one candidate ")
	sb.WriteString("in a single sitting. Compare the answers with each other: consistent personal style ")
	sb.WriteString("suggests one human author; abrupt register changes or generic templated prose suggest ")
	sb.WriteString("outside assistance.\n\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"ai_generated_probability": <0 to 100>, "pov_presence": <0 to 100>, "originality": <0 to 100>, "style_inconsistent": <bool>}`)
	sb.WriteString("\n")
	return sb.String()
}

// CareerMapping builds the system prompt for the attempt-level career-fit
// analysis.
func CareerMapping() string {
	var sb strings.Builder
	sb.WriteString("You are a career counselor. Based on the candidate's answers to career- and ")
	sb.WriteString("industry-related questions below, suggest fields that fit their demonstrated ")
	sb.WriteString("interests and strengths.\n\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"fields": [{"field": "<name>", "confidence": <0 to 100>, "reasoning": "<short>"}], "summary": "<2-3 sentences>"}`)
	sb.WriteString("\n")
	return sb.String()
}

// AnswerSet formats multiple answers as one user message for cross-answer
// analysis.
func AnswerSet(answers []string) string {
	var sb strings.Builder
	for i, a := range answers {
		sb.WriteString(fmt.Sprintf("ANSWER %d:\n%s\n\n", i+1, SanitizeAnswer(a)))
	}
	return sb.String()
}

// QuestionAnswerSet formats question/answer pairs as one user message.
func QuestionAnswerSet(questions, answers []string) string {
	var sb strings.Builder
	for i := range questions {
		sb.WriteString(fmt.Sprintf("QUESTION %d: %s\n", i+1, questions[i]))
		if i < len(answers) {
			sb.WriteString(fmt.Sprintf("ANSWER %d:\n%s\n\n", i+1, SanitizeAnswer(answers[i])))
		}
	}
	return sb.String()
}
