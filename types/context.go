package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyRequestID    contextKey = "request_id"
	keyReviewerID   contextKey = "reviewer_id"
	keyReviewerName contextKey = "reviewer_name"
	keyRoles        contextKey = "roles"
)

// WithRequestID adds the request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID extracts the request ID from context.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}

// WithReviewerID adds the authenticated reviewer ID to context.
func WithReviewerID(ctx context.Context, reviewerID string) context.Context {
	return context.WithValue(ctx, keyReviewerID, reviewerID)
}

// ReviewerID extracts the authenticated reviewer ID from context.
func ReviewerID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyReviewerID).(string)
	return v, ok && v != ""
}

// WithReviewerName adds the reviewer display name to context.
func WithReviewerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyReviewerName, name)
}

// ReviewerName extracts the reviewer display name from context.
func ReviewerName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyReviewerName).(string)
	return v, ok && v != ""
}

// WithRoles adds the caller's roles to context.
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, keyRoles, roles)
}

// Roles extracts the caller's roles from context.
func Roles(ctx context.Context) ([]string, bool) {
	v, ok := ctx.Value(keyRoles).([]string)
	return v, ok && len(v) > 0
}
