package service

import (
	"context"
	"fmt"
	"log/slog"

	"darkgravity/internal/domain"
)

// AnalyzeService is the event-driven half of the pipeline: it reacts to
// StoryFetched deliveries by running the provider chain and persisting the
// result.
type AnalyzeService struct {
	stories  StoryStore
	analyzer Analyzer
	logger   *slog.Logger
}

func NewAnalyzeService(stories StoryStore, analyzer Analyzer, logger *slog.Logger) *AnalyzeService {
	return &AnalyzeService{
		stories:  stories,
		analyzer: analyzer,
		logger:   logger.With("component", "analyze"),
	}
}

// HandleStoryFetched is safe to invoke more than once for the same event:
// a story that already carries a valid analysis is left untouched, which is
// what makes at-least-once delivery affordable. Errors are returned so the
// transport's retry policy re-runs the whole handler.
func (s *AnalyzeService) HandleStoryFetched(ctx context.Context, event domain.StoryFetched) error {
	s.logger.Info("received story", "story_id", event.StoryID, "title", event.Title)

	story, err := s.stories.FindByID(ctx, event.StoryID)
	if err != nil {
		return fmt.Errorf("load story %s: %w", event.StoryID, err)
	}
	if story == nil {
		s.logger.Warn("story not found", "story_id", event.StoryID)
		return nil
	}

	if !domain.InvalidAnalysis(story.AIAnalysis) {
		s.logger.Info("story already analyzed, skipping", "story_id", story.ID)
		return nil
	}

	story.AIAnalysis, story.ScaryScore = s.analyzer.Analyze(ctx, story)

	if err := s.stories.Save(ctx, story); err != nil {
		return fmt.Errorf("save analysis for %s: %w", story.ID, err)
	}

	s.logger.Info("analysis complete",
		"story_id", story.ID,
		"title", story.Title,
		"score", scoreValue(story.ScaryScore),
	)
	return nil
}

func scoreValue(score *float64) any {
	if score == nil {
		return nil
	}
	return *score
}
