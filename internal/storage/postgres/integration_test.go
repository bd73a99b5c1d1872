//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"darkgravity/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
	store     *StoryStore
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	s.store = NewStoryStore(db)
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM stories")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func sampleStory(externalID string) *domain.Story {
	return &domain.Story{
		ID:         uuid.New(),
		ExternalID: externalID,
		Title:      "The Basement Door",
		Author:     "u_sleepless",
		URL:        "https://reddit.com/r/nosleep/comments/abc",
		BodyText:   "The door was open again this morning.",
		Upvotes:    412,
		FetchedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresIntegrationSuite) TestSaveAndFindByExternalID() {
	story := sampleStory("t3_abc")
	s.Require().NoError(s.store.Save(s.ctx, story))

	found, err := s.store.FindByExternalID(s.ctx, "t3_abc")
	s.NoError(err)
	s.Require().NotNil(found)
	s.Equal(story.ID, found.ID)
	s.Equal(story.Title, found.Title)
	s.Equal(story.BodyText, found.BodyText)
	s.Empty(found.AIAnalysis)
	s.Nil(found.ScaryScore)
}

func (s *PostgresIntegrationSuite) TestFindMissingReturnsNilNil() {
	found, err := s.store.FindByExternalID(s.ctx, "t3_nope")
	s.NoError(err)
	s.Nil(found)

	found, err = s.store.FindByID(s.ctx, uuid.New())
	s.NoError(err)
	s.Nil(found)
}

func (s *PostgresIntegrationSuite) TestSaveUpsertsMutableFieldsOnly() {
	story := sampleStory("t3_abc")
	s.Require().NoError(s.store.Save(s.ctx, story))

	score := 8.5
	update := sampleStory("t3_abc")
	update.Title = "Changed Title"
	update.AIAnalysis = "A Ghost story. Score: 8.5/10"
	update.ScaryScore = &score
	update.Upvotes = 500
	s.Require().NoError(s.store.Save(s.ctx, update))

	found, err := s.store.FindByExternalID(s.ctx, "t3_abc")
	s.NoError(err)
	s.Require().NotNil(found)

	// original id and title survive, analysis fields and upvotes move
	s.Equal(story.ID, found.ID)
	s.Equal("The Basement Door", found.Title)
	s.Equal("A Ghost story. Score: 8.5/10", found.AIAnalysis)
	s.Require().NotNil(found.ScaryScore)
	s.Equal(8.5, *found.ScaryScore)
	s.Equal(500, found.Upvotes)
}

func (s *PostgresIntegrationSuite) TestAllOrdersByFetchedAt() {
	older := sampleStory("t3_old")
	older.FetchedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	newer := sampleStory("t3_new")

	s.Require().NoError(s.store.Save(s.ctx, newer))
	s.Require().NoError(s.store.Save(s.ctx, older))

	all, err := s.store.All(s.ctx)
	s.NoError(err)
	s.Require().Len(all, 2)
	s.Equal("t3_old", all[0].ExternalID)
	s.Equal("t3_new", all[1].ExternalID)
}

func (s *PostgresIntegrationSuite) TestListDefaultsToUpvotesDescending() {
	low := sampleStory("t3_low")
	low.Upvotes = 10
	high := sampleStory("t3_high")
	high.Upvotes = 999

	s.Require().NoError(s.store.Save(s.ctx, low))
	s.Require().NoError(s.store.Save(s.ctx, high))

	page, err := s.store.List(s.ctx, "", "", 10, 0)
	s.NoError(err)
	s.Require().Len(page, 2)
	s.Equal("t3_high", page[0].ExternalID)
	s.Equal("t3_low", page[1].ExternalID)
}

func (s *PostgresIntegrationSuite) TestListScoreSortPutsNullsLast() {
	score := 9.0
	scored := sampleStory("t3_scored")
	scored.AIAnalysis = "A Slasher story. Score: 9/10"
	scored.ScaryScore = &score
	pending := sampleStory("t3_pending")

	s.Require().NoError(s.store.Save(s.ctx, scored))
	s.Require().NoError(s.store.Save(s.ctx, pending))

	page, err := s.store.List(s.ctx, "scary_score", "desc", 10, 0)
	s.NoError(err)
	s.Require().Len(page, 2)
	s.Equal("t3_scored", page[0].ExternalID)
	s.Equal("t3_pending", page[1].ExternalID)
}

func (s *PostgresIntegrationSuite) TestListRejectsUnknownSortColumn() {
	s.Require().NoError(s.store.Save(s.ctx, sampleStory("t3_abc")))

	// falls back to the default sort instead of interpolating the input
	page, err := s.store.List(s.ctx, "upvotes; DROP TABLE stories", "desc", 10, 0)
	s.NoError(err)
	s.Len(page, 1)
}

func (s *PostgresIntegrationSuite) TestTransactionCommitsSaveAll() {
	tm := NewTransactionManager(s.db)
	score := 7.0
	stories := []domain.Story{*sampleStory("t3_a"), *sampleStory("t3_b")}
	for i := range stories {
		stories[i].AIAnalysis = "A Monster story. Score: 7/10"
		stories[i].ScaryScore = &score
	}

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		return s.store.SaveAll(txCtx, stories)
	})
	s.NoError(err)

	all, err := s.store.All(s.ctx)
	s.NoError(err)
	s.Len(all, 2)
}

func (s *PostgresIntegrationSuite) TestTransactionRollsBackOnError() {
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		if err := s.store.Save(txCtx, sampleStory("t3_doomed")); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Error(err)

	found, err := s.store.FindByExternalID(s.ctx, "t3_doomed")
	s.NoError(err)
	s.Nil(found)
}
