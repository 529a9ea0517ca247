package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ryo-cool/go-concurrency-learner/internal/executor"
	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
	"github.com/Ryo-cool/go-concurrency-learner/internal/session"
	"github.com/Ryo-cool/go-concurrency-learner/internal/storage"
	"github.com/Ryo-cool/go-concurrency-learner/internal/validation"
)

// handleCheck validates a submission against its lesson. Outputs come from the
// referenced session, or from the request body when no session is given.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.lessons.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", MsgLessonNotFound)
		return
	}

	var req models.CheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	outputs := req.Outputs
	if req.SessionID != "" {
		sess, err := s.sessions.Get(r.Context(), req.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				respondError(w, http.StatusNotFound, "not_found", "session not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to get session")
			return
		}
		if sess.LearnerID != "" && sess.LearnerID != LearnerFromContext(r.Context()) {
			respondError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		// Only a finished run can be graded
		if sess.Client.State() == executor.StateRunning {
			respondError(w, http.StatusConflict, "already_running", "code is still running in this session")
			return
		}
		outputs = sess.Client.Outputs()
	}

	if validation.NeedsExecution(lesson, outputs) {
		respondJSON(w, http.StatusOK, models.CheckResponse{
			NeedsExecution: true,
			Toast:          validation.ExecuteFirstToast(),
		})
		return
	}

	result := validation.Validate(lesson, req.Code, outputs)

	learnerID := LearnerFromContext(r.Context())
	slog.Info("submission checked",
		"lesson_id", lesson.ID,
		"learner_id", learnerID,
		"correct", result.IsCorrect,
		"score", result.Score,
	)

	if learnerID != "" {
		s.recordCheck(r.Context(), learnerID, lesson, req.Code, &result)
	}

	respondJSON(w, http.StatusOK, models.CheckResponse{
		Result: &result,
		Toast:  validation.ToastFor(result),
	})
}

// recordCheck stores the submission and marks the lesson completed on a pass.
// Storage failures are logged; the learner still gets the verdict.
func (s *Server) recordCheck(ctx context.Context, learnerID string, lesson *models.Lesson, code string, result *models.ValidationResult) {
	now := s.now()

	sub := &models.Submission{
		ID:        uuid.New().String(),
		LearnerID: learnerID,
		LessonID:  lesson.ID,
		IsCorrect: result.IsCorrect,
		Score:     result.Score,
		CreatedAt: now,
	}
	if err := s.repo.RecordSubmission(ctx, sub); err != nil {
		slog.Error("failed to record submission", "error", err, "lesson_id", lesson.ID)
	}

	if !result.IsCorrect {
		return
	}

	prev, err := s.repo.GetProgress(ctx, learnerID, lesson.ID)
	if err != nil && !errors.Is(err, storage.ErrProgressNotFound) {
		slog.Error("failed to load progress", "error", err, "lesson_id", lesson.ID)
		return
	}

	next := models.NextProgress(prev, learnerID, lesson.ID, models.ProgressCompleted, &code, now)
	if err := s.repo.SaveProgress(ctx, next); err != nil {
		slog.Error("failed to save progress", "error", err, "lesson_id", lesson.ID)
	}
}
