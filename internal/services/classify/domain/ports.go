package domain

import (
	"context"

	"repoharvest/internal/adapters/inference"
)

// RunnerPort is what the classify binary calls
type RunnerPort interface {
	Run(ctx context.Context) (Snapshot, error)
}

// StatusPort exposes the live run view to the status endpoint
type StatusPort interface {
	Snapshot() Snapshot
}

// Inferencer is one chat-completions attempt
type Inferencer interface {
	Complete(ctx context.Context, r inference.Request) (inference.Completion, error)
	Model() string
}

// Sink is an append-only durable log
type Sink interface {
	Append(v any) error
}

// Mirror is an optional secondary store for results; errors are not fatal
type Mirror interface {
	SaveResult(ctx context.Context, r Result) error
	Count(ctx context.Context, runID string) (int, error)
}
