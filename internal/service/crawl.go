package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"darkgravity/internal/domain"
)

// CrawlService runs one ingestion pass over all configured sources.
type CrawlService struct {
	sources []Source
	ingest  *IngestService
	logger  *slog.Logger
}

func NewCrawlService(sources []Source, ingest *IngestService, logger *slog.Logger) *CrawlService {
	return &CrawlService{
		sources: sources,
		ingest:  ingest,
		logger:  logger.With("component", "crawl"),
	}
}

// Crawl fetches from each source in turn and feeds the batches to ingestion.
// Source fetch failures have already been swallowed by the connectors; a
// persistence failure aborts the run with whatever stats accumulated so far.
func (s *CrawlService) Crawl(ctx context.Context) (*domain.IngestStats, error) {
	startTime := time.Now()
	total := &domain.IngestStats{}

	for _, src := range s.sources {
		s.logger.Info("fetching source", "source", src.ID(), "name", src.Name())

		stories, err := src.FetchStories(ctx)
		if err != nil {
			s.logger.Error("source fetch failed", "source", src.ID(), "error", err)
			total.Errors++
			continue
		}

		stats, err := s.ingest.ProcessAndSave(ctx, stories)
		if stats != nil {
			total.Add(stats)
		}
		if err != nil {
			total.Duration = time.Since(startTime)
			return total, fmt.Errorf("process %s batch: %w", src.ID(), err)
		}
	}

	total.Duration = time.Since(startTime)

	s.logger.Info("crawl completed",
		"fetched", total.Fetched,
		"new", total.New,
		"skipped", total.Skipped,
		"repaired", total.Repaired,
		"published", total.Published,
		"errors", total.Errors,
		"duration", total.Duration,
	)

	return total, nil
}
