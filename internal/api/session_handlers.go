package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
	"github.com/Ryo-cool/go-concurrency-learner/internal/session"
)

// Execution session handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	if req.LessonID != "" {
		if _, err := s.lessons.Get(req.LessonID); err != nil {
			respondError(w, http.StatusNotFound, "not_found", MsgLessonNotFound)
			return
		}
	}

	sess, err := s.sessions.Create(r.Context(), LearnerFromContext(r.Context()), req.LessonID)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	learnerID := LearnerFromContext(r.Context())

	var infos []*models.ExecutionSession
	for _, sess := range s.sessions.List(r.Context()) {
		if learnerID != "" && sess.LearnerID != learnerID {
			continue
		}
		infos = append(infos, sess.Info())
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": infos,
		"total":    len(infos),
	})
}

// loadSession resolves the {id} URL parameter, writing the error response when it fails
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "session not found")
			return nil, false
		}
		slog.Error("failed to get session", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get session")
		return nil, false
	}

	if sess.LearnerID != "" && sess.LearnerID != LearnerFromContext(r.Context()) {
		respondError(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}

	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if err := s.sessions.Delete(r.Context(), sess.ID); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		slog.Error("failed to delete session", "error", err, "id", sess.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
	})
}

// handleRunSession executes code synchronously and returns the produced records.
// A session that is already running answers 409 without starting anything.
func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	var req models.RunRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	records, started := sess.Client.Execute(r.Context(), req.Code)
	if !started {
		respondError(w, http.StatusConflict, "already_running", "code is already running in this session")
		return
	}

	resp := models.RunResponse{Outputs: records}
	if run := sess.Client.LastRun(); run != nil {
		resp.Outcome = string(run.Outcome)
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled": sess.Client.Cancel(),
		"outputs":   sess.Client.Outputs(),
	})
}

func (s *Server) handleGetOutputs(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"outputs": sess.Client.Outputs(),
		"state":   sess.Info().State,
	})
}

func (s *Server) handleClearOutputs(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	sess.Client.Clear()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"outputs": []models.OutputRecord{},
	})
}
