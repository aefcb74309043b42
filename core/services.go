package core

import (
	"context"
	"io"
	"time"
)

type (
	// FileStorage stores lesson assets (videos, pdfs).
	FileStorage interface {
		Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
		PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
		Delete(ctx context.Context, key string) error
	}

	// EventPublisher fans domain events out to external consumers.
	EventPublisher interface {
		Publish(ctx context.Context, routingKey string, payload interface{}) error
		Close() error
	}
)
