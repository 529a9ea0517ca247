package models

import "time"

// SessionState mirrors the execution client state for API responses
type SessionState string

const (
	SessionIdle    SessionState = "idle"
	SessionRunning SessionState = "running"
)

// ExecutionSession describes a server-side execution session.
// Each session owns exactly one execution client; browser tabs hold one session each.
type ExecutionSession struct {
	ID         string       `json:"id"`
	LearnerID  string       `json:"learnerId,omitempty"`
	LessonID   string       `json:"lessonId,omitempty"`
	State      SessionState `json:"state"`
	CreatedAt  time.Time    `json:"createdAt"`
	LastUsedAt time.Time    `json:"lastUsedAt"`
}

// IdleFor returns how long the session has been unused at now
func (s *ExecutionSession) IdleFor(now time.Time) time.Duration {
	d := now.Sub(s.LastUsedAt)
	if d < 0 {
		return 0
	}
	return d
}

// CreateSessionRequest represents a request to create an execution session
type CreateSessionRequest struct {
	LessonID string `json:"lessonId,omitempty"`
}

// RunRequest carries code to execute
type RunRequest struct {
	Code string `json:"code"`
}

// RunResponse is returned after a run completes
type RunResponse struct {
	Outputs []OutputRecord `json:"outputs"`
	Outcome string         `json:"outcome"`
}

// CheckRequest asks for a submission to be validated.
// Outputs come from the session when SessionID is set, otherwise from Outputs.
type CheckRequest struct {
	Code      string         `json:"code"`
	SessionID string         `json:"sessionId,omitempty"`
	Outputs   []OutputRecord `json:"outputs,omitempty"`
}

// Toast is the one-line notification shown after a check
type Toast struct {
	Kind    FeedbackKind `json:"type"`
	Message string       `json:"message"`
}

// CheckResponse is the result of a check request
type CheckResponse struct {
	NeedsExecution bool              `json:"needsExecution"`
	Result         *ValidationResult `json:"result,omitempty"`
	Toast          Toast             `json:"toast"`
}
