package async

import (
	"context"
	"time"
)

// Job is one document path waiting for extraction.
type Job struct {
	Path        string
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler processes one job. It must honour ctx.
type Handler func(ctx context.Context, job Job)
