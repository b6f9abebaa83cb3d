package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gradepipe/gradepipe/internal/model"
)

// ErrAlreadyGraded is returned when a second grading result arrives for the
// same (attempt, question) pair. Results are write-once.
var ErrAlreadyGraded = errors.New("answer already graded for this attempt")

// InsertGradingResult stores a grading result exactly once per
// (attempt, question) pair. The UNIQUE constraint backs the check under
// concurrent inserts.
func (s *Store) InsertGradingResult(attemptID string, answer string, r model.GradingResult) error {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM grading_results WHERE attempt_id = ? AND question_id = ?`,
		attemptID, r.QuestionID,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyGraded
	}

	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode grading result: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO grading_results (attempt_id, question_id, answer, score, feedback, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attemptID, r.QuestionID, answer, r.Score, r.Feedback, string(blob), time.Now(),
	)
	return err
}

// GetGradingResult returns the stored result for one (attempt, question)
// pair, or nil if the answer has not been graded.
func (s *Store) GetGradingResult(attemptID string, questionID int64) (*model.GradingResult, error) {
	var blob string
	err := s.db.QueryRow(
		`SELECT result FROM grading_results WHERE attempt_id = ? AND question_id = ?`,
		attemptID, questionID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r model.GradingResult
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("decode grading result: %w", err)
	}
	return &r, nil
}

// GetResultsForAttempt returns all grading results of an attempt, ordered
// by question ID.
func (s *Store) GetResultsForAttempt(attemptID string) ([]model.GradingResult, error) {
	rows, err := s.db.Query(
		`SELECT result FROM grading_results WHERE attempt_id = ? ORDER BY question_id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.GradingResult
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var r model.GradingResult
		if err := json.Unmarshal([]byte(blob), &r); err != nil {
			return nil, fmt.Errorf("decode grading result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetAnswersForAttempt returns the raw answer text of every graded question
// in an attempt, keyed by question ID.
func (s *Store) GetAnswersForAttempt(attemptID string) (map[int64]string, error) {
	rows, err := s.db.Query(
		`SELECT question_id, answer FROM grading_results WHERE attempt_id = ?`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	answers := make(map[int64]string)
	for rows.Next() {
		var id int64
		var answer string
		if err := rows.Scan(&id, &answer); err != nil {
			return nil, err
		}
		answers[id] = answer
	}
	return answers, rows.Err()
}

// InsertAttemptSummary stores the attempt-level aggregate once.
func (s *Store) InsertAttemptSummary(sum model.AttemptSummary) error {
	blob, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode attempt summary: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO attempt_summaries (attempt_id, summary, created_at) VALUES (?, ?, ?)`,
		sum.AttemptID, string(blob), time.Now(),
	)
	return err
}

// GetAttemptSummary returns the stored summary for an attempt, or nil.
func (s *Store) GetAttemptSummary(attemptID string) (*model.AttemptSummary, error) {
	var blob string
	err := s.db.QueryRow(
		`SELECT summary FROM attempt_summaries WHERE attempt_id = ?`, attemptID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sum model.AttemptSummary
	if err := json.Unmarshal([]byte(blob), &sum); err != nil {
		return nil, fmt.Errorf("decode attempt summary: %w", err)
	}
	return &sum, nil
}
