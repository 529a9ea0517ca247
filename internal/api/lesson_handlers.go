package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ryo-cool/go-concurrency-learner/internal/lessons"
	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
)

// MsgLessonNotFound is returned for unknown lesson IDs
const MsgLessonNotFound = "レッスンが見つかりません"

func filterFromRequest(r *http.Request) lessons.Filter {
	q := r.URL.Query()
	return lessons.Filter{
		Category: models.Category(q.Get("category")),
		Search:   q.Get("search"),
	}
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	list := s.lessons.List(filterFromRequest(r))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"lessons": list,
		"total":   len(list),
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": s.lessons.Categories(),
	})
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.lessons.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", MsgLessonNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"lesson": lesson,
	})
}

// handleLessonNeighbors returns the previous and next lesson within the same filter as the listing
func (s *Server) handleLessonNeighbors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	filter := filterFromRequest(r)

	prev, err := s.lessons.Previous(filter, id)
	if err != nil {
		if errors.Is(err, lessons.ErrLessonNotFound) {
			respondError(w, http.StatusNotFound, "not_found", MsgLessonNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to find neighbors")
		return
	}
	next, _ := s.lessons.Next(filter, id)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"previous": prev,
		"next":     next,
	})
}
