package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"darkgravity/internal/domain"
)

// schema is applied at startup. The UNIQUE constraint on external_id is the
// backstop against two concurrent ingestion runs both passing the not-found
// check for the same story.
const schema = `
CREATE TABLE IF NOT EXISTS stories (
	id UUID PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	body_text TEXT NOT NULL DEFAULT '',
	ai_analysis TEXT NOT NULL DEFAULT '',
	scary_score DOUBLE PRECISION,
	upvotes INTEGER NOT NULL DEFAULT 0,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_stories_upvotes ON stories (upvotes DESC);
CREATE INDEX IF NOT EXISTS idx_stories_fetched_at ON stories (fetched_at DESC);
`

type StoryStore struct {
	db *sqlx.DB
}

func NewStoryStore(db *sqlx.DB) *StoryStore {
	return &StoryStore{db: db}
}

func (s *StoryStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const storyColumns = `id, external_id, title, author, url, body_text, ai_analysis, scary_score, upvotes, fetched_at`

func (s *StoryStore) FindByExternalID(ctx context.Context, externalID string) (*domain.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE external_id = $1`

	var story domain.Story
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &story, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (s *StoryStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`

	var story domain.Story
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &story, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

// Save inserts or overwrites by external_id. Only the mutable fields are
// updated on conflict; title, author, url and body are immutable once
// fetched. The upsert turns the concurrent-insert race into last-write-wins.
func (s *StoryStore) Save(ctx context.Context, story *domain.Story) error {
	query := `
		INSERT INTO stories (
			id, external_id, title, author, url, body_text,
			ai_analysis, scary_score, upvotes, fetched_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (external_id) DO UPDATE SET
			ai_analysis = EXCLUDED.ai_analysis,
			scary_score = EXCLUDED.scary_score,
			upvotes = EXCLUDED.upvotes`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		story.ID,
		story.ExternalID,
		story.Title,
		story.Author,
		story.URL,
		story.BodyText,
		story.AIAnalysis,
		story.ScaryScore,
		story.Upvotes,
		story.FetchedAt,
	)
	return err
}

func (s *StoryStore) SaveAll(ctx context.Context, stories []domain.Story) error {
	for i := range stories {
		if err := s.Save(ctx, &stories[i]); err != nil {
			return fmt.Errorf("save story %q: %w", stories[i].ExternalID, err)
		}
	}
	return nil
}

func (s *StoryStore) All(ctx context.Context) ([]domain.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories ORDER BY fetched_at`

	var stories []domain.Story
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &stories, query)
	return stories, err
}

// Sortable columns for List, keyed by the caller-facing field name.
var sortColumns = map[string]string{
	"upvotes":     "upvotes",
	"scary_score": "scary_score",
	"fetched_at":  "fetched_at",
	"title":       "title",
}

// List returns a page of stories ordered by a whitelisted column. Default
// sort is upvotes descending, the popularity order the feed shows.
func (s *StoryStore) List(ctx context.Context, orderBy, order string, limit, offset int) ([]domain.Story, error) {
	column, ok := sortColumns[orderBy]
	if !ok {
		column = "upvotes"
	}
	direction := "DESC"
	if order == "asc" {
		direction = "ASC"
	}

	query := fmt.Sprintf(
		`SELECT `+storyColumns+` FROM stories ORDER BY %s %s NULLS LAST LIMIT $1 OFFSET $2`,
		column, direction,
	)

	var stories []domain.Story
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &stories, query, limit, offset)
	return stories, err
}
