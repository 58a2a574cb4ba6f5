// Package correlation carries the correlation ID that threads a Job from
// Enqueue through every retry, attempt and log line.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// New generates a random UUID v4 correlation ID.
func New() string {
	return uuid.NewString()
}

// WithID returns a copy of ctx with the correlation ID attached.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the correlation ID from ctx. Returns "" if absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
