package api

import (
	"log/slog"
	"net/http"

	"github.com/Ryo-cool/go-concurrency-learner/internal/guard"
	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
	"github.com/Ryo-cool/go-concurrency-learner/pkg/playground"
)

// Playground proxy messages
const (
	MsgCodeMissing     = "コードが提供されていません"
	MsgExecutionFailed = "コードの実行中にエラーが発生しました"
)

// handlePlayground forwards code to the upstream compiler and returns its raw response.
// Execution clients consume this shape directly, so successful responses are not enveloped.
func (s *Server) handlePlayground(w http.ResponseWriter, r *http.Request) {
	var req playground.CompileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "validation_error", MsgCodeMissing)
		return
	}

	if len(req.Code) > guard.MaxCodeBytes {
		respondError(w, http.StatusBadRequest, "validation_error", guard.ReasonTooLarge)
		return
	}

	ctx := r.Context()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, req.Code)
		if err != nil {
			slog.Warn("playground cache read failed", "error", err)
		} else if cached != nil {
			w.Header().Set("X-Cache", "HIT")
			writeRaw(w, http.StatusOK, cached)
			return
		}
	}

	resp, err := s.upstream.Compile(ctx, req.Code)
	if err != nil {
		slog.Error("playground upstream failed", "error", err, "request_id", requestID(r))
		respondError(w, http.StatusInternalServerError, "execution_failed", MsgExecutionFailed)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, req.Code, resp); err != nil {
			slog.Warn("playground cache write failed", "error", err)
		}
	}

	w.Header().Set("X-Cache", "MISS")
	writeRaw(w, http.StatusOK, resp)
}

// handleScreen runs the code guard alone, letting editors flag rejected code before running it
func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	var req models.RunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, guard.Screen(req.Code))
}
