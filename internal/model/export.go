package model

import "time"

// ResultsExport is the top-level JSON structure for attempt result export.
type ResultsExport struct {
	ExamID        string          `json:"exam_id"`
	Subject       string          `json:"subject"`
	Date          string          `json:"date"`
	PromptVariant string          `json:"prompt_variant"`
	Attempts      []AttemptExport `json:"attempts"`
}

// AttemptExport holds one attempt's grading data for export.
type AttemptExport struct {
	AttemptID   string          `json:"attempt_id"`
	Status      AttemptStatus   `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	FinalizedAt *time.Time      `json:"finalized_at,omitempty"`
	Answers     []AnswerExport  `json:"answers"`
	Summary     *AttemptSummary `json:"summary,omitempty"`
}

// AnswerExport holds one graded answer for export.
type AnswerExport struct {
	QuestionID   int64         `json:"question_id"`
	QuestionText string        `json:"question_text"`
	Subject      string        `json:"subject,omitempty"`
	Answer       string        `json:"answer"`
	Result       GradingResult `json:"result"`
	GradedAt     time.Time     `json:"graded_at"`
}
