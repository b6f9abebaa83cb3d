package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleGrader may submit answers for grading and read results.
	UserRoleGrader UserRole = "grader"
	// UserRoleAdmin may additionally manage questions and users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionShortAnswer QuestionType = "short_answer"
	QuestionDescriptive QuestionType = "descriptive"
	QuestionNumerical   QuestionType = "numerical"
	QuestionDiagram     QuestionType = "diagram"
)

// IsDescriptive reports whether the type is graded on the free-text path.
func (t QuestionType) IsDescriptive() bool {
	return t == QuestionShortAnswer || t == QuestionDescriptive
}

// Question represents an exam question. Questions are authored externally
// and read-only from the grading pipeline's point of view.
type Question struct {
	ID                 int64        `json:"id"`
	Text               string       `json:"text"`
	Type               QuestionType `json:"type"`
	CanonicalAnswer    string       `json:"canonical_answer,omitempty"`
	MaxPoints          int          `json:"max_points"`
	Subject            string       `json:"subject,omitempty"`
	MandatoryKeywords  []string     `json:"mandatory_keywords,omitempty"`
	SupportingKeywords []string     `json:"supporting_keywords,omitempty"`
	ExpectedStructure  string       `json:"expected_structure,omitempty"`
	MinWords           int          `json:"min_words,omitempty"`
	OptimalWords       int          `json:"optimal_words,omitempty"`
	MaxWords           int          `json:"max_words,omitempty"`
	MinPointsRequired  int          `json:"min_points_required,omitempty"`
}

// QuestionImport is used for loading questions from JSON files.
type QuestionImport struct {
	Text               string       `json:"text"`
	Type               QuestionType `json:"type"`
	CanonicalAnswer    string       `json:"canonical_answer"`
	MaxPoints          int          `json:"max_points"`
	Subject            string       `json:"subject"`
	MandatoryKeywords  []string     `json:"mandatory_keywords"`
	SupportingKeywords []string     `json:"supporting_keywords"`
	ExpectedStructure  string       `json:"expected_structure"`
	MinWords           int          `json:"min_words"`
	OptimalWords       int          `json:"optimal_words"`
	MaxWords           int          `json:"max_words"`
	MinPointsRequired  int          `json:"min_points_required"`
}

// DepthTier is a qualitative rating of how thoroughly a conceptual point
// is addressed in an answer.
type DepthTier string

const (
	DepthLow    DepthTier = "low"
	DepthMedium DepthTier = "medium"
	DepthHigh   DepthTier = "high"
)

// SubScore is one bounded dimension of a score breakdown.
type SubScore struct {
	Awarded float64 `json:"awarded"`
	Max     float64 `json:"max"`
}

// MarksDistribution breaks a descriptive score into seven graded dimensions.
// The dimension maxima are fixed proportions of the question's max points and
// Total is always consistent with the sum of the parts.
type MarksDistribution struct {
	ConceptAccuracy  SubScore `json:"concept_accuracy"`
	LogicalReasoning SubScore `json:"logical_reasoning"`
	PointsCoverage   SubScore `json:"points_coverage"`
	KeywordAccuracy  SubScore `json:"keyword_accuracy"`
	Structure        SubScore `json:"structure"`
	Length           SubScore `json:"length"`
	OriginalThought  SubScore `json:"original_thought"`
	Total            SubScore `json:"total"`
}

// PointValidation records whether one required conceptual point is covered.
type PointValidation struct {
	Point   string    `json:"point"`
	Covered bool      `json:"covered"`
	Depth   DepthTier `json:"depth"`
}

// KeywordMatch records a single keyword lookup.
type KeywordMatch struct {
	Keyword string `json:"keyword"`
	Found   bool   `json:"found"`
	Count   int    `json:"count"`
}

// KeywordAnalysis is the deterministic keyword scoring primitive.
type KeywordAnalysis struct {
	Mandatory    []KeywordMatch `json:"mandatory"`
	Supporting   []KeywordMatch `json:"supporting"`
	MatchPercent float64        `json:"match_percent"`
	Density      float64        `json:"density"`
	Stuffing     bool           `json:"stuffing"`
}

// StepCheck is one step of a numerical answer's working.
type StepCheck struct {
	Step    string `json:"step"`
	Correct bool   `json:"correct"`
	Comment string `json:"comment,omitempty"`
}

// NumericalValidation is the outcome of checking a numerical answer.
type NumericalValidation struct {
	FormulaCorrect    bool        `json:"formula_correct"`
	StepsValid        bool        `json:"steps_valid"`
	FinalValueCorrect bool        `json:"final_value_correct"`
	PartialMarks      float64     `json:"partial_marks"`
	Steps             []StepCheck `json:"steps,omitempty"`
}

// DiagramEvaluation is the outcome of checking a diagram answer.
type DiagramEvaluation struct {
	ComponentPresence    SubScore `json:"component_presence"`
	LabelAccuracy        SubScore `json:"label_accuracy"`
	LogicalFlow          SubScore `json:"logical_flow"`
	ExplanationAlignment SubScore `json:"explanation_alignment"`
	Total                SubScore `json:"total"`
	DetectedComponents   []string `json:"detected_components,omitempty"`
	MissingComponents    []string `json:"missing_components,omitempty"`
}

// IntegrityFlags are advisory annotations for human review. They never
// modify a score on their own.
type IntegrityFlags struct {
	IrrelevantAnswer   bool `json:"irrelevant_answer_flag"`
	AIUsageSuspected   bool `json:"ai_usage_suspected"`
	StyleInconsistency bool `json:"style_inconsistency_flag"`
	KeywordPenalty     bool `json:"keyword_penalty"`
	LowPersonalVoice   bool `json:"low_pov_flag"`
	TimeAnomaly        bool `json:"time_anomaly_flag"`
}

// RelevanceResult is the outcome of the pre-scoring relevance gate.
// Degraded marks a fail-open default substituted after a backend failure.
type RelevanceResult struct {
	Score         int    `json:"score"`
	QuestionTopic string `json:"question_topic,omitempty"`
	AnswerTopic   string `json:"answer_topic,omitempty"`
	Relevant      bool   `json:"relevant"`
	Degraded      bool   `json:"degraded,omitempty"`
}

// OriginalityMetrics are attempt-scoped style and authorship signals,
// derived from all descriptive answers of one attempt together.
type OriginalityMetrics struct {
	AIGeneratedProbability float64 `json:"ai_generated_probability"`
	POVPresence            float64 `json:"pov_presence"`
	Originality            float64 `json:"originality"`
	StyleInconsistent      bool    `json:"style_inconsistent"`
}

// CareerField is one suggested field in a career mapping.
type CareerField struct {
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// CareerMapping maps an attempt's answers to suggested career fields.
type CareerMapping struct {
	Fields  []CareerField `json:"fields"`
	Summary string        `json:"summary,omitempty"`
}

// GradingResult is the outcome of grading one answer. It is created once
// per (attempt, question) pair and immutable thereafter.
type GradingResult struct {
	QuestionID     int64                `json:"question_id"`
	Score          int                  `json:"score"`
	Feedback       string               `json:"feedback"`
	RelevanceScore int                  `json:"relevance_score"`
	Marks          MarksDistribution    `json:"marks"`
	Points         []PointValidation    `json:"points,omitempty"`
	Keywords       *KeywordAnalysis     `json:"keywords,omitempty"`
	Numerical      *NumericalValidation `json:"numerical,omitempty"`
	Diagram        *DiagramEvaluation   `json:"diagram,omitempty"`
	Flags          IntegrityFlags       `json:"flags"`
}

// AttemptStatus represents where an attempt is in its lifecycle.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptFinalized  AttemptStatus = "finalized"
)

// Attempt is the unit at which originality and career aggregation run:
// the full set of answers a candidate submits for one assessment.
type Attempt struct {
	ID          string        `json:"id"`
	Status      AttemptStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	FinalizedAt *time.Time    `json:"finalized_at,omitempty"`
}

// AttemptSummary is the attempt-level aggregate produced after every
// per-answer result exists. It never mutates per-answer results.
type AttemptSummary struct {
	AttemptID   string             `json:"attempt_id"`
	Originality OriginalityMetrics `json:"originality"`
	Career      *CareerMapping     `json:"career,omitempty"`
	Flags       IntegrityFlags     `json:"flags"`
}
