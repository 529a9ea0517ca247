package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 2
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the connection pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// HealthCheck implements health.Checker
func (r *PostgresRepository) HealthCheck(ctx context.Context) error {
	return r.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetProgress retrieves the progress of a learner on a lesson
func (r *PostgresRepository) GetProgress(ctx context.Context, learnerID, lessonID string) (*models.LessonProgress, error) {
	query := `
		SELECT learner_id, lesson_id, status, current_code, completed_at, updated_at
		FROM lesson_progress
		WHERE learner_id = $1 AND lesson_id = $2
	`

	p, err := scanProgress(r.pool.QueryRow(ctx, query, learnerID, lessonID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return p, nil
}

// ListProgress returns all progress records of a learner, most recent first
func (r *PostgresRepository) ListProgress(ctx context.Context, learnerID string) ([]*models.LessonProgress, error) {
	query := `
		SELECT learner_id, lesson_id, status, current_code, completed_at, updated_at
		FROM lesson_progress
		WHERE learner_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := r.pool.Query(ctx, query, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var result []*models.LessonProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		result = append(result, p)
	}

	return result, rows.Err()
}

// SaveProgress inserts or updates a progress record.
// An existing completion time is kept when the new record has none.
func (r *PostgresRepository) SaveProgress(ctx context.Context, p *models.LessonProgress) error {
	query := `
		INSERT INTO lesson_progress (learner_id, lesson_id, status, current_code, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (learner_id, lesson_id) DO UPDATE SET
			status = EXCLUDED.status,
			current_code = EXCLUDED.current_code,
			completed_at = COALESCE(lesson_progress.completed_at, EXCLUDED.completed_at),
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		p.LearnerID,
		p.LessonID,
		string(p.Status),
		p.CurrentCode,
		nullTime(p.CompletedAt),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}

// RecordSubmission stores a graded check
func (r *PostgresRepository) RecordSubmission(ctx context.Context, s *models.Submission) error {
	query := `
		INSERT INTO submissions (id, learner_id, lesson_id, is_correct, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query, s.ID, s.LearnerID, s.LessonID, s.IsCorrect, s.Score, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}

	return nil
}

// ListSubmissions returns the latest graded checks of a learner on a lesson
func (r *PostgresRepository) ListSubmissions(ctx context.Context, learnerID, lessonID string, limit int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, learner_id, lesson_id, is_correct, score, created_at
		FROM submissions
		WHERE learner_id = $1 AND lesson_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, learnerID, lessonID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var result []*models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.LearnerID, &s.LessonID, &s.IsCorrect, &s.Score, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		result = append(result, &s)
	}

	return result, rows.Err()
}

func scanProgress(row pgx.Row) (*models.LessonProgress, error) {
	var p models.LessonProgress
	var status string
	var completedAt sql.NullTime

	if err := row.Scan(&p.LearnerID, &p.LessonID, &status, &p.CurrentCode, &completedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	p.Status = models.ProgressStatus(status)
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}

	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
