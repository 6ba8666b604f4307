package service

import (
	"context"
	"time"
)

// DefaultStoreTimeout bounds a single store call when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// RequestMeta describes the client behind a request for audit purposes.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Actor identifies the authenticated account performing an operation.
type Actor struct {
	AccountID string
	Username  string
	IsAdmin   bool
}

// storeContext detaches ctx from request cancellation and bounds it by timeout.
func storeContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
