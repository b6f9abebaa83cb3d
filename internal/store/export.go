package store

import (
	"encoding/json"
	"fmt"

	"github.com/gradepipe/gradepipe/internal/model"
)

// ExportAllAttempts collects every attempt with its graded answers and
// summary, oldest attempt first.
func (s *Store) ExportAllAttempts() ([]model.AttemptExport, error) {
	rows, err := s.db.Query(`SELECT id, status, started_at, finalized_at FROM attempts ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.Status, &a.StartedAt, &a.FinalizedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var exports []model.AttemptExport
	for _, a := range attempts {
		answers, err := s.exportAnswers(a.ID)
		if err != nil {
			return nil, err
		}
		summary, err := s.GetAttemptSummary(a.ID)
		if err != nil {
			return nil, err
		}
		exports = append(exports, model.AttemptExport{
			AttemptID:   a.ID,
			Status:      a.Status,
			StartedAt:   a.StartedAt,
			FinalizedAt: a.FinalizedAt,
			Answers:     answers,
			Summary:     summary,
		})
	}
	return exports, nil
}

func (s *Store) exportAnswers(attemptID string) ([]model.AnswerExport, error) {
	rows, err := s.db.Query(
		`SELECT r.question_id, q.text, q.subject, r.answer, r.result, r.created_at
		 FROM grading_results r JOIN questions q ON q.id = r.question_id
		 WHERE r.attempt_id = ? ORDER BY r.question_id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.AnswerExport
	for rows.Next() {
		var ae model.AnswerExport
		var blob string
		if err := rows.Scan(&ae.QuestionID, &ae.QuestionText, &ae.Subject, &ae.Answer, &blob, &ae.GradedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(blob), &ae.Result); err != nil {
			return nil, fmt.Errorf("decode grading result: %w", err)
		}
		answers = append(answers, ae)
	}
	return answers, rows.Err()
}
