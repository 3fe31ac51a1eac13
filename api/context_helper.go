package api

import (
	"context"
	"time"
)

// QueryTimeout is the default timeout for store queries; no chat operation
// blocks longer than a single read/write against the store
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context bounded by QueryTimeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

