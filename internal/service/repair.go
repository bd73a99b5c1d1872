package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"darkgravity/internal/domain"
)

// RepairService is the offline maintenance sweep. It re-derives scores with
// the current parser (stored data may predate parser fixes) and re-analyzes
// anything whose text is invalid.
type RepairService struct {
	stories   StoryStore
	analyzer  Analyzer
	txManager TransactionManager
	logger    *slog.Logger
}

func NewRepairService(
	stories StoryStore,
	analyzer Analyzer,
	txManager TransactionManager,
	logger *slog.Logger,
) *RepairService {
	return &RepairService{
		stories:   stories,
		analyzer:  analyzer,
		txManager: txManager,
		logger:    logger.With("component", "repair"),
	}
}

// Repair scans every stored record and persists all changes in one pass at
// the end.
func (s *RepairService) Repair(ctx context.Context) (*domain.RepairStats, error) {
	startTime := time.Now()

	stories, err := s.stories.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stories: %w", err)
	}

	stats := &domain.RepairStats{Scanned: len(stories)}
	var changed []domain.Story

	for i := range stories {
		story := &stories[i]

		if domain.InvalidAnalysis(story.AIAnalysis) {
			s.logger.Info("reanalyzing story", "story_id", story.ID, "title", story.Title)

			text, score := s.analyzer.Analyze(ctx, story)

			// Getting mock back for an already-mock record means every key
			// failed again; writing it would change nothing.
			if strings.HasPrefix(text, domain.MockAnalysisPrefix) &&
				strings.HasPrefix(story.AIAnalysis, domain.MockAnalysisPrefix) {
				s.logger.Warn("still mock after reanalysis, check provider credentials",
					"story_id", story.ID)
				stats.StillMock++
				continue
			}

			story.AIAnalysis = text
			story.ScaryScore = score
			changed = append(changed, *story)
			stats.Reanalyzed++
			continue
		}

		// Valid text: only the score may be stale relative to the parser.
		if score := s.analyzer.ParseScore(story.AIAnalysis); !scoreEqual(score, story.ScaryScore) {
			story.ScaryScore = score
			changed = append(changed, *story)
			stats.Rescored++
		}
	}

	if len(changed) > 0 {
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.stories.SaveAll(txCtx, changed)
		})
		if err != nil {
			return stats, fmt.Errorf("persist repairs: %w", err)
		}
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("repair sweep completed",
		"scanned", stats.Scanned,
		"reanalyzed", stats.Reanalyzed,
		"rescored", stats.Rescored,
		"still_mock", stats.StillMock,
		"duration", stats.Duration,
	)

	return stats, nil
}

func scoreEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
