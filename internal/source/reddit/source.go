package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"darkgravity/internal/domain"
)

const (
	SourceID   = "reddit"
	SourceName = "Reddit"
)

// Config holds Reddit source configuration.
type Config struct {
	BaseURL    string
	Subreddits []string
	Limit      int
	Timeout    time.Duration
	UserAgent  string
}

// Source fetches top posts from the configured horror subreddits. Fetch
// errors are logged and swallowed; a failing subreddit contributes nothing
// to the batch instead of failing it.
type Source struct {
	httpClient *http.Client
	baseURL    string
	subreddits []string
	limit      int
	userAgent  string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.BaseURL,
		subreddits: cfg.Subreddits,
		limit:      cfg.Limit,
		userAgent:  cfg.UserAgent,
		logger:     logger.With("source", SourceID),
	}
}

func (s *Source) ID() string {
	return SourceID
}

func (s *Source) Name() string {
	return SourceName
}

// FetchStories collects top daily posts across all configured subreddits.
// It never returns an error; the returned slice may be empty.
func (s *Source) FetchStories(ctx context.Context) ([]domain.Story, error) {
	var stories []domain.Story

	for _, sub := range s.subreddits {
		listing, err := s.fetchSubreddit(ctx, sub)
		if err != nil {
			s.logger.Error("fetch failed", "subreddit", sub, "error", err)
			continue
		}

		batch := s.transform(listing)
		s.logger.Debug("fetched subreddit", "subreddit", sub, "stories", len(batch))
		stories = append(stories, batch...)
	}

	return stories, nil
}

func (s *Source) fetchSubreddit(ctx context.Context, subreddit string) (*Listing, error) {
	url := fmt.Sprintf("%s/r/%s/top.json?limit=%d&t=day", s.baseURL, subreddit, s.limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var listing Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &listing, nil
}

func (s *Source) transform(listing *Listing) []domain.Story {
	stories := make([]domain.Story, 0, len(listing.Data.Children))

	for _, post := range listing.Data.Children {
		data := post.Data
		if data.Stickied {
			continue
		}

		stories = append(stories, domain.Story{
			ExternalID: data.ID,
			Title:      data.Title,
			Author:     data.Author,
			URL:        "https://reddit.com" + data.Permalink,
			BodyText:   data.SelfText,
			Upvotes:    data.Ups,
			FetchedAt:  time.Now().UTC(),
		})
	}

	return stories
}
