package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gradepipe/gradepipe/internal/model"
)

func (h *Handler) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("questions_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	storedHash, err := h.store.GetMetadata("import:" + header.Filename)
	if err != nil {
		slog.Error("failed to check import status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if storedHash == hash {
		writeJSON(w, http.StatusOK, map[string]any{
			"imported":  0,
			"duplicate": true,
		})
		return
	}

	var imports []model.QuestionImport
	if err := json.Unmarshal(data, &imports); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	for _, qi := range imports {
		_, err := h.store.InsertQuestion(model.Question{
			Text:               qi.Text,
			Type:               qi.Type,
			CanonicalAnswer:    qi.CanonicalAnswer,
			MaxPoints:          qi.MaxPoints,
			Subject:            qi.Subject,
			MandatoryKeywords:  qi.MandatoryKeywords,
			SupportingKeywords: qi.SupportingKeywords,
			ExpectedStructure:  qi.ExpectedStructure,
			MinWords:           qi.MinWords,
			OptimalWords:       qi.OptimalWords,
			MaxWords:           qi.MaxWords,
			MinPointsRequired:  qi.MinPointsRequired,
		})
		if err != nil {
			slog.Error("failed to insert question", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to insert question: "+err.Error())
			return
		}
	}

	if err := h.store.SetMetadata("import:"+header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("imported questions via admin", "filename", header.Filename, "count", len(imports))
	writeJSON(w, http.StatusOK, map[string]any{
		"imported":  len(imports),
		"duplicate": false,
	})
}
