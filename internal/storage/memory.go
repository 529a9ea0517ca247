package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
)

// MemoryRepository keeps progress in process memory. It backs the server when
// no database is configured and is used by tests.
type MemoryRepository struct {
	progress *xsync.MapOf[string, *models.LessonProgress]

	mu          sync.Mutex
	submissions []*models.Submission
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		progress: xsync.NewMapOf[string, *models.LessonProgress](),
	}
}

func progressKey(learnerID, lessonID string) string {
	return learnerID + "\x00" + lessonID
}

// GetProgress retrieves the progress of a learner on a lesson
func (r *MemoryRepository) GetProgress(_ context.Context, learnerID, lessonID string) (*models.LessonProgress, error) {
	p, ok := r.progress.Load(progressKey(learnerID, lessonID))
	if !ok {
		return nil, ErrProgressNotFound
	}
	cp := *p
	return &cp, nil
}

// ListProgress returns all progress records of a learner, most recent first
func (r *MemoryRepository) ListProgress(_ context.Context, learnerID string) ([]*models.LessonProgress, error) {
	var result []*models.LessonProgress
	r.progress.Range(func(_ string, p *models.LessonProgress) bool {
		if p.LearnerID == learnerID {
			cp := *p
			result = append(result, &cp)
		}
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// SaveProgress inserts or updates a progress record
func (r *MemoryRepository) SaveProgress(_ context.Context, p *models.LessonProgress) error {
	cp := *p
	r.progress.Compute(progressKey(p.LearnerID, p.LessonID), func(old *models.LessonProgress, loaded bool) (*models.LessonProgress, bool) {
		if loaded && old.CompletedAt != nil && cp.CompletedAt == nil {
			cp.CompletedAt = old.CompletedAt
		}
		return &cp, false
	})
	return nil
}

// RecordSubmission stores a graded check
func (r *MemoryRepository) RecordSubmission(_ context.Context, s *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.submissions = append(r.submissions, &cp)
	return nil
}

// ListSubmissions returns the latest graded checks of a learner on a lesson
func (r *MemoryRepository) ListSubmissions(_ context.Context, learnerID, lessonID string, limit int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = 20
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Submission
	for i := len(r.submissions) - 1; i >= 0 && len(result) < limit; i-- {
		s := r.submissions[i]
		if s.LearnerID == learnerID && s.LessonID == lessonID {
			cp := *s
			result = append(result, &cp)
		}
	}
	return result, nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
