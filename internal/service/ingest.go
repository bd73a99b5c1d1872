package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"darkgravity/internal/domain"
)

// IngestService deduplicates fetched stories against the store and decides
// new-vs-skip-vs-reprocess per item. In event mode (the default) analysis is
// deferred to the consumer via StoryFetched events; in sync mode the chain
// runs inline, for offline use without a broker.
type IngestService struct {
	stories   StoryStore
	analyzer  Analyzer
	publisher Publisher
	logger    *slog.Logger
	syncMode  bool
}

func NewIngestService(
	stories StoryStore,
	analyzer Analyzer,
	publisher Publisher,
	logger *slog.Logger,
	syncMode bool,
) *IngestService {
	return &IngestService{
		stories:   stories,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    logger.With("component", "ingest"),
		syncMode:  syncMode,
	}
}

// ProcessAndSave handles one fetched batch. The store lookup happens per
// item, never cached across items, so a crash mid-batch cannot duplicate
// records on restart. Persistence errors abort the batch; everything else is
// counted and carried on.
func (s *IngestService) ProcessAndSave(ctx context.Context, stories []domain.Story) (*domain.IngestStats, error) {
	startTime := time.Now()
	stats := &domain.IngestStats{Fetched: len(stories)}

	for i := range stories {
		story := &stories[i]

		existing, err := s.stories.FindByExternalID(ctx, story.ExternalID)
		if err != nil {
			return stats, fmt.Errorf("lookup story %q: %w", story.ExternalID, err)
		}

		switch {
		case existing == nil:
			if err := s.saveNew(ctx, story, stats); err != nil {
				return stats, err
			}

		case !domain.InvalidAnalysis(existing.AIAnalysis):
			// idempotent no-op
			stats.Skipped++

		default:
			if err := s.reprocess(ctx, existing, stats); err != nil {
				return stats, err
			}
		}
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("batch processed",
		"fetched", stats.Fetched,
		"new", stats.New,
		"skipped", stats.Skipped,
		"repaired", stats.Repaired,
		"published", stats.Published,
		"analyzed", stats.Analyzed,
		"errors", stats.Errors,
	)

	return stats, nil
}

func (s *IngestService) saveNew(ctx context.Context, story *domain.Story, stats *domain.IngestStats) error {
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	if story.FetchedAt.IsZero() {
		story.FetchedAt = time.Now().UTC()
	}
	story.AIAnalysis = ""
	story.ScaryScore = nil

	if err := s.stories.Save(ctx, story); err != nil {
		return fmt.Errorf("save story %q: %w", story.ExternalID, err)
	}
	stats.New++

	s.logger.Info("new story", "external_id", story.ExternalID, "title", story.Title)

	if s.syncMode {
		story.AIAnalysis, story.ScaryScore = s.analyzer.Analyze(ctx, story)
		if err := s.stories.Save(ctx, story); err != nil {
			return fmt.Errorf("save analysis for %q: %w", story.ExternalID, err)
		}
		stats.Analyzed++
		return nil
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, story); err != nil {
			// the repair sweep will catch the unanalyzed record
			s.logger.Error("publish failed", "external_id", story.ExternalID, "error", err)
			stats.Errors++
			return nil
		}
		stats.Published++
	}
	return nil
}

// reprocess self-heals a stored record whose analysis is empty, mock-tagged
// or error-tainted. Unlike new stories this always runs the chain inline:
// the record is already persisted, so there is no skeleton to hand off.
func (s *IngestService) reprocess(ctx context.Context, story *domain.Story, stats *domain.IngestStats) error {
	s.logger.Info("reprocessing corrupted analysis", "external_id", story.ExternalID)

	story.AIAnalysis, story.ScaryScore = s.analyzer.Analyze(ctx, story)
	if err := s.stories.Save(ctx, story); err != nil {
		return fmt.Errorf("save reprocessed %q: %w", story.ExternalID, err)
	}
	stats.Repaired++
	return nil
}
