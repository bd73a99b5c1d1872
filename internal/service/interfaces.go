package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/google/uuid"

	"darkgravity/internal/domain"
)

// StoryStore is the keyed persistence boundary. FindByExternalID and FindByID
// return (nil, nil) when no record exists.
type StoryStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*domain.Story, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Story, error)
	Save(ctx context.Context, story *domain.Story) error
	SaveAll(ctx context.Context, stories []domain.Story) error
	All(ctx context.Context) ([]domain.Story, error)
}

// Source is a content connector. Implementations swallow their own fetch
// errors and return whatever they managed to collect, possibly nothing.
type Source interface {
	ID() string
	Name() string
	FetchStories(ctx context.Context) ([]domain.Story, error)
}

// Publisher emits StoryFetched events for asynchronous analysis.
type Publisher interface {
	Publish(ctx context.Context, story *domain.Story) error
	Close() error
}

// Analyzer produces an analysis text and parsed score for a story. Analyze
// never fails: when every provider is down it returns the mock fallback.
type Analyzer interface {
	Analyze(ctx context.Context, story *domain.Story) (string, *float64)
	ParseScore(text string) *float64
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
