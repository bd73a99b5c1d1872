package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"darkgravity/internal/domain"
)

const (
	SourceID   = "youtube"
	SourceName = "YouTube"

	// externalIDPrefix keeps video ids from colliding with Reddit post ids
	// in the shared dedup keyspace.
	externalIDPrefix = "yt_"
)

// Config holds YouTube source configuration.
type Config struct {
	APIKey  string
	Queries []string
	Limit   int64
}

// Source searches the Data API for horror narration channels and turns the
// top results into stories. The video description stands in for body text;
// view count maps onto the upvotes popularity signal.
type Source struct {
	service *youtube.Service
	queries []string
	limit   int64
	logger  *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Source, error) {
	service, err := youtube.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &Source{
		service: service,
		queries: cfg.Queries,
		limit:   cfg.Limit,
		logger:  logger.With("source", SourceID),
	}, nil
}

func (s *Source) ID() string {
	return SourceID
}

func (s *Source) Name() string {
	return SourceName
}

// FetchStories runs each configured search query. Per-query failures are
// logged and swallowed so one bad query cannot empty the whole batch.
func (s *Source) FetchStories(ctx context.Context) ([]domain.Story, error) {
	var stories []domain.Story

	for _, query := range s.queries {
		batch, err := s.search(ctx, query)
		if err != nil {
			s.logger.Error("search failed", "query", query, "error", err)
			continue
		}

		s.logger.Debug("fetched query", "query", query, "stories", len(batch))
		stories = append(stories, batch...)
	}

	return stories, nil
}

func (s *Source) search(ctx context.Context, query string) ([]domain.Story, error) {
	searchResp, err := s.service.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(s.limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}

	var videoIDs []string
	for _, item := range searchResp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			videoIDs = append(videoIDs, item.Id.VideoId)
		}
	}
	if len(videoIDs) == 0 {
		return nil, nil
	}

	videosResp, err := s.service.Videos.List([]string{"snippet", "statistics"}).
		Id(videoIDs...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch video details: %w", err)
	}

	stories := make([]domain.Story, 0, len(videosResp.Items))
	for _, video := range videosResp.Items {
		stories = append(stories, s.transform(video))
	}
	return stories, nil
}

func (s *Source) transform(video *youtube.Video) domain.Story {
	body := video.Snippet.Description
	if body == "" {
		body = "No content available."
	}

	var views int
	if video.Statistics != nil {
		views = int(video.Statistics.ViewCount)
	}

	return domain.Story{
		ExternalID: externalIDPrefix + video.Id,
		Title:      video.Snippet.Title,
		Author:     video.Snippet.ChannelTitle,
		URL:        "https://www.youtube.com/watch?v=" + video.Id,
		BodyText:   body,
		Upvotes:    views,
		FetchedAt:  time.Now().UTC(),
	}
}
