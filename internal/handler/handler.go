package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gradepipe/gradepipe/internal/grader"
	"github.com/gradepipe/gradepipe/internal/model"
	"github.com/gradepipe/gradepipe/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	grader *grader.Grader
}

// New creates a new Handler.
func New(s *store.Store, g *grader.Grader) *Handler {
	return &Handler{store: s, grader: g}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/api/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/api/logout", h.handleLogout)
		r.Get("/api/questions", h.handleListQuestions)
		r.Get("/api/questions/{questionID}", h.handleGetQuestion)
		r.Post("/api/attempts", h.handleCreateAttempt)
		r.Get("/api/attempts", h.handleListAttempts)
		r.Get("/api/attempts/{attemptID}", h.handleGetAttempt)
		r.Post("/api/attempts/{attemptID}/answers/{questionID}", h.handleGradeAnswer)
		r.Post("/api/attempts/{attemptID}/finalize", h.handleFinalizeAttempt)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Post("/api/admin/questions/import", h.handleImportQuestions)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListQuestions()
	if err != nil {
		slog.Error("failed to list questions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question ID")
		return
	}
	q, err := h.store.GetQuestion(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleCreateAttempt(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.CreateAttempt(uuid.NewString())
	if err != nil {
		slog.Error("failed to create attempt", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("attempt started", "attempt_id", a.ID)
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.store.ListAttempts()
	if err != nil {
		slog.Error("failed to list attempts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

// attemptView is the detailed attempt response with per-answer results and,
// when finalized, the attempt summary.
type attemptView struct {
	model.Attempt
	Results []model.GradingResult `json:"results"`
	Summary *model.AttemptSummary `json:"summary,omitempty"`
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	a, err := h.store.GetAttempt(attemptID)
	if err != nil {
		slog.Error("failed to get attempt", "attempt_id", attemptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "attempt not found")
		return
	}

	results, err := h.store.GetResultsForAttempt(attemptID)
	if err != nil {
		slog.Error("failed to get results", "attempt_id", attemptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if results == nil {
		results = []model.GradingResult{}
	}
	summary, err := h.store.GetAttemptSummary(attemptID)
	if err != nil {
		slog.Error("failed to get summary", "attempt_id", attemptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, attemptView{Attempt: *a, Results: results, Summary: summary})
}

type gradeRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) handleGradeAnswer(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	questionID, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question ID")
		return
	}

	a, err := h.store.GetAttempt(attemptID)
	if err != nil {
		slog.Error("failed to get attempt", "attempt_id", attemptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "attempt not found")
		return
	}
	if a.Status != model.AttemptInProgress {
		writeError(w, http.StatusConflict, "attempt already finalized")
		return
	}

	question, err := h.store.GetQuestion(questionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.grader.GradeAnswer(r.Context(), question, req.Answer)

	if err := h.store.InsertGradingResult(attemptID, req.Answer, result); err != nil {
		if err == store.ErrAlreadyGraded {
			writeError(w, http.StatusConflict, "answer already graded for this attempt")
			return
		}
		slog.Error("failed to store result", "attempt_id", attemptID, "question_id", questionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("answer graded",
		"attempt_id", attemptID,
		"question_id", questionID,
		"score", result.Score,
		"max_points", question.MaxPoints)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleFinalizeAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	a, err := h.store.GetAttempt(attemptID)
	if err != nil {
		slog.Error("failed to get attempt", "attempt_id", attemptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "attempt not found")
		return
	}
	if a.Status != model.AttemptInProgress {
		writeError(w, http.StatusConflict, "attempt already finalized")
		return
	}

	results, err := h.store.GetResultsForAttempt(attemptID)
	if err != nil {
		slog.Error("failed to get results", "attempt_id", attemptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	answers, err := h.store.GetAnswersForAttempt(attemptID)
	if err != nil {
		slog.Error("failed to get answers", "attempt_id", attemptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var questions []model.Question
	for _, res := range results {
		q, err := h.store.GetQuestion(res.QuestionID)
		if err != nil {
			slog.Error("failed to get question", "question_id", res.QuestionID, "error", err)
			continue
		}
		questions = append(questions, q)
	}

	summary := h.grader.AggregateAttempt(r.Context(), questions, answers, results)
	summary.AttemptID = attemptID

	if err := h.store.InsertAttemptSummary(summary); err != nil {
		slog.Error("failed to store summary", "attempt_id", attemptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.store.FinalizeAttempt(attemptID); err != nil {
		slog.Error("failed to finalize attempt", "attempt_id", attemptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("attempt finalized", "attempt_id", attemptID, "answers", len(results))
	writeJSON(w, http.StatusOK, summary)
}
