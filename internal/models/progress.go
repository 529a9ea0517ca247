package models

import "time"

// ProgressStatus is a learner's state on a lesson
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not-started"
	ProgressInProgress ProgressStatus = "in-progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// IsValid reports whether s is a known status
func (s ProgressStatus) IsValid() bool {
	return s == ProgressNotStarted || s == ProgressInProgress || s == ProgressCompleted
}

// LessonProgress is the persisted state of one learner on one lesson
type LessonProgress struct {
	LearnerID   string         `json:"learnerId"`
	LessonID    string         `json:"lessonId"`
	Status      ProgressStatus `json:"status"`
	CurrentCode string         `json:"currentCode"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// NextProgress applies a status change (and optionally new code) to existing progress.
// prev may be nil when the learner has no record for the lesson yet.
// CompletedAt is stamped when the status becomes completed and kept afterwards.
func NextProgress(prev *LessonProgress, learnerID, lessonID string, status ProgressStatus, code *string, now time.Time) *LessonProgress {
	next := &LessonProgress{
		LearnerID: learnerID,
		LessonID:  lessonID,
		Status:    status,
		UpdatedAt: now,
	}
	if prev != nil {
		next.CurrentCode = prev.CurrentCode
		next.CompletedAt = prev.CompletedAt
	}
	if code != nil {
		next.CurrentCode = *code
	}
	if status == ProgressCompleted && (prev == nil || prev.Status != ProgressCompleted || prev.CompletedAt == nil) {
		t := now
		next.CompletedAt = &t
	}
	return next
}

// UpdateProgressRequest is the body of a progress update
type UpdateProgressRequest struct {
	Status ProgressStatus `json:"status"`
	Code   *string        `json:"code,omitempty"`
}

// Submission is one graded check of a learner's code
type Submission struct {
	ID        string    `json:"id"`
	LearnerID string    `json:"learnerId"`
	LessonID  string    `json:"lessonId"`
	IsCorrect bool      `json:"isCorrect"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}
