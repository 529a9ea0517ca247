package api

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

// LearnerHeader carries the learner identity. The server does not authenticate
// learners; the header only scopes progress records.
const LearnerHeader = "X-Learner-ID"

var learnerIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,128}$`)

// IdentifyLearner reads the learner header into the request context.
// A malformed ID is rejected; a missing one leaves the request anonymous.
func IdentifyLearner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(LearnerHeader))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !learnerIDPattern.MatchString(id) {
			slog.Warn("invalid learner id", "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusBadRequest, "invalid_learner", "invalid "+LearnerHeader+" header")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithLearner(r.Context(), id)))
	})
}

// RequireLearner rejects anonymous requests
func RequireLearner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LearnerFromContext(r.Context()) == "" {
			respondError(w, http.StatusBadRequest, "learner_required", LearnerHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
