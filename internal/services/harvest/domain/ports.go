package domain

import (
	"context"

	"repoharvest/internal/adapters/github"
)

// RunnerPort is what the crawl binary calls
type RunnerPort interface {
	Run(ctx context.Context) (Stats, error)
}

// Searcher fetches one page of repository search results
type Searcher interface {
	SearchRepositories(ctx context.Context, q github.SearchQuery) (github.SearchPage, error)
}

// ReadmeFetcher returns README text; ("", nil) when the repository has none
type ReadmeFetcher interface {
	Readme(ctx context.Context, owner, repo string) (string, error)
}

// Sink is the durable append-only candidate log
type Sink interface {
	Append(v any) error
}

// Cleaner turns raw README text into the stored enrichment text
type Cleaner interface {
	Clean(s string) string
}
