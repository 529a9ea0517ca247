package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
	"github.com/Ryo-cool/go-concurrency-learner/internal/storage"
)

// Progress handlers; all routes require a learner

func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.ListProgress(r.Context(), LearnerFromContext(r.Context()))
	if err != nil {
		slog.Error("failed to list progress", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list progress")
		return
	}
	if list == nil {
		list = []*models.LessonProgress{}
	}

	completed := 0
	for _, p := range list {
		if p.Status == models.ProgressCompleted {
			completed++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"progress":  list,
		"completed": completed,
		"total":     s.lessons.Count(),
	})
}

// handleGetProgress returns the stored progress, or a not-started record when there is none
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	learnerID := LearnerFromContext(r.Context())
	lessonID := chi.URLParam(r, "lessonId")

	if _, err := s.lessons.Get(lessonID); err != nil {
		respondError(w, http.StatusNotFound, "not_found", MsgLessonNotFound)
		return
	}

	p, err := s.repo.GetProgress(r.Context(), learnerID, lessonID)
	if err != nil {
		if errors.Is(err, storage.ErrProgressNotFound) {
			respondJSON(w, http.StatusOK, &models.LessonProgress{
				LearnerID: learnerID,
				LessonID:  lessonID,
				Status:    models.ProgressNotStarted,
			})
			return
		}
		slog.Error("failed to get progress", "error", err, "lesson_id", lessonID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get progress")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	learnerID := LearnerFromContext(r.Context())
	lessonID := chi.URLParam(r, "lessonId")

	if _, err := s.lessons.Get(lessonID); err != nil {
		respondError(w, http.StatusNotFound, "not_found", MsgLessonNotFound)
		return
	}

	var req models.UpdateProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !req.Status.IsValid() {
		respondError(w, http.StatusBadRequest, "validation_error", "status must be one of not-started, in-progress, completed")
		return
	}

	s.saveProgress(w, r, learnerID, lessonID, req.Status, req.Code)
}

// handleStartLesson marks a lesson in-progress with its initial code the first time it is opened.
// Existing progress is returned unchanged.
func (s *Server) handleStartLesson(w http.ResponseWriter, r *http.Request) {
	learnerID := LearnerFromContext(r.Context())
	lessonID := chi.URLParam(r, "lessonId")

	lesson, err := s.lessons.Get(lessonID)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", MsgLessonNotFound)
		return
	}

	existing, err := s.repo.GetProgress(r.Context(), learnerID, lessonID)
	if err == nil {
		respondJSON(w, http.StatusOK, existing)
		return
	}
	if !errors.Is(err, storage.ErrProgressNotFound) {
		slog.Error("failed to get progress", "error", err, "lesson_id", lessonID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get progress")
		return
	}

	code := lesson.InitialCode
	s.saveProgress(w, r, learnerID, lessonID, models.ProgressInProgress, &code)
}

func (s *Server) saveProgress(w http.ResponseWriter, r *http.Request, learnerID, lessonID string, status models.ProgressStatus, code *string) {
	prev, err := s.repo.GetProgress(r.Context(), learnerID, lessonID)
	if err != nil && !errors.Is(err, storage.ErrProgressNotFound) {
		slog.Error("failed to get progress", "error", err, "lesson_id", lessonID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get progress")
		return
	}

	next := models.NextProgress(prev, learnerID, lessonID, status, code, s.now())
	if err := s.repo.SaveProgress(r.Context(), next); err != nil {
		slog.Error("failed to save progress", "error", err, "lesson_id", lessonID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to save progress")
		return
	}

	respondJSON(w, http.StatusOK, next)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	learnerID := LearnerFromContext(r.Context())
	lessonID := chi.URLParam(r, "lessonId")

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	subs, err := s.repo.ListSubmissions(r.Context(), learnerID, lessonID, limit)
	if err != nil {
		slog.Error("failed to list submissions", "error", err, "lesson_id", lessonID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list submissions")
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": subs,
		"total":       len(subs),
	})
}
