package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gradepipe/gradepipe/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		qtype TEXT NOT NULL,
		canonical_answer TEXT NOT NULL DEFAULT '',
		max_points INTEGER NOT NULL DEFAULT 10,
		subject TEXT NOT NULL DEFAULT '',
		mandatory_keywords TEXT NOT NULL DEFAULT '[]',
		supporting_keywords TEXT NOT NULL DEFAULT '[]',
		expected_structure TEXT NOT NULL DEFAULT '',
		min_words INTEGER NOT NULL DEFAULT 0,
		optimal_words INTEGER NOT NULL DEFAULT 0,
		max_words INTEGER NOT NULL DEFAULT 0,
		min_points_required INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'in_progress',
		started_at DATETIME NOT NULL,
		finalized_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS grading_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		answer TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(attempt_id, question_id),
		FOREIGN KEY (attempt_id) REFERENCES attempts(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS attempt_summaries (
		attempt_id TEXT PRIMARY KEY,
		summary TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (attempt_id) REFERENCES attempts(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS grading_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertQuestion stores a question. Keyword sets are stored as JSON arrays.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	mandatory, err := json.Marshal(orEmpty(q.MandatoryKeywords))
	if err != nil {
		return 0, err
	}
	supporting, err := json.Marshal(orEmpty(q.SupportingKeywords))
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO questions (text, qtype, canonical_answer, max_points, subject,
			mandatory_keywords, supporting_keywords, expected_structure,
			min_words, optimal_words, max_words, min_points_required)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Text, q.Type, q.CanonicalAnswer, q.MaxPoints, q.Subject,
		string(mandatory), string(supporting), q.ExpectedStructure,
		q.MinWords, q.OptimalWords, q.MaxWords, q.MinPointsRequired,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const questionColumns = `id, text, qtype, canonical_answer, max_points, subject,
	mandatory_keywords, supporting_keywords, expected_structure,
	min_words, optimal_words, max_words, min_points_required`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var mandatory, supporting string
	err := row.Scan(&q.ID, &q.Text, &q.Type, &q.CanonicalAnswer, &q.MaxPoints, &q.Subject,
		&mandatory, &supporting, &q.ExpectedStructure,
		&q.MinWords, &q.OptimalWords, &q.MaxWords, &q.MinPointsRequired)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(mandatory), &q.MandatoryKeywords); err != nil {
		return q, fmt.Errorf("decode mandatory keywords for question %d: %w", q.ID, err)
	}
	if err := json.Unmarshal([]byte(supporting), &q.SupportingKeywords); err != nil {
		return q, fmt.Errorf("decode supporting keywords for question %d: %w", q.ID, err)
	}
	return q, nil
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	return scanQuestion(row)
}

// ListQuestions returns all questions.
func (s *Store) ListQuestions() ([]model.Question, error) {
	rows, err := s.db.Query(`SELECT ` + questionColumns + ` FROM questions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// CreateAttempt creates a new attempt with the given ID.
func (s *Store) CreateAttempt(id string) (model.Attempt, error) {
	a := model.Attempt{
		ID:        id,
		Status:    model.AttemptInProgress,
		StartedAt: time.Now(),
	}
	_, err := s.db.Exec(
		`INSERT INTO attempts (id, status, started_at) VALUES (?, ?, ?)`,
		a.ID, a.Status, a.StartedAt,
	)
	return a, err
}

// GetAttempt returns an attempt by ID, or nil if not found.
func (s *Store) GetAttempt(id string) (*model.Attempt, error) {
	var a model.Attempt
	err := s.db.QueryRow(
		`SELECT id, status, started_at, finalized_at FROM attempts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Status, &a.StartedAt, &a.FinalizedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FinalizeAttempt marks an attempt finalized.
func (s *Store) FinalizeAttempt(id string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE attempts SET status = ?, finalized_at = ? WHERE id = ?`,
		model.AttemptFinalized, now, id,
	)
	return err
}

// ListAttempts returns all attempts, newest first.
func (s *Store) ListAttempts() ([]model.Attempt, error) {
	rows, err := s.db.Query(`SELECT id, status, started_at, finalized_at FROM attempts ORDER BY started_at DESC`)
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
	return attempts, rows.Err()
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
