// Package storage persists learner progress.
package storage

import (
	"context"
	"errors"

	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
)

// ErrProgressNotFound is returned when a learner has no record for a lesson
var ErrProgressNotFound = errors.New("progress not found")

// Repository defines the interface for progress persistence
type Repository interface {
	// Progress
	GetProgress(ctx context.Context, learnerID, lessonID string) (*models.LessonProgress, error)
	ListProgress(ctx context.Context, learnerID string) ([]*models.LessonProgress, error)
	SaveProgress(ctx context.Context, p *models.LessonProgress) error

	// Submissions
	RecordSubmission(ctx context.Context, s *models.Submission) error
	ListSubmissions(ctx context.Context, learnerID, lessonID string, limit int) ([]*models.Submission, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
