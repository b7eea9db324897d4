package context

import (
	"context"
	"testing"
	"time"
)

// WithTest derives a context which is done 1 second before the test's deadline.
//
// If the test has no deadline, it derives a context limited to limit.
func WithTest(ctx context.Context, t *testing.T, limit time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := t.Deadline(); ok {
		return context.WithDeadline(ctx, deadline.Add(-time.Second))
	}
	return context.WithTimeout(ctx, limit)
}
