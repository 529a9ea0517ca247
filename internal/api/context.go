package api

import "context"

type contextKey string

const learnerContextKey contextKey = "learner_id"

// LearnerFromContext extracts the learner ID from context, or "" when anonymous
func LearnerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(learnerContextKey).(string)
	return id
}

// ContextWithLearner adds the learner ID to context
func ContextWithLearner(ctx context.Context, learnerID string) context.Context {
	return context.WithValue(ctx, learnerContextKey, learnerID)
}
