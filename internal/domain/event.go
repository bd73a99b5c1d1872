package domain

import "github.com/google/uuid"

// StoryFetched is published after a new story is persisted as a skeleton
// record and consumed by the analyzer. Delivery is at-least-once; the
// consumer's idempotency guard makes redelivery safe.
type StoryFetched struct {
	StoryID  uuid.UUID `json:"story_id"`
	Title    string    `json:"title"`
	BodyText string    `json:"body_text"`
	URL      string    `json:"url"`
}
