package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockAnalysisPrefix tags the deterministic fallback analysis produced when
// every configured AI provider fails. Records carrying it are always eligible
// for re-analysis.
const MockAnalysisPrefix = "MOCK ANALYSIS:"

// ErrorKeywords mark an analysis text as a leaked provider error rather than
// a real result. Matched case-insensitively as substrings.
var ErrorKeywords = []string{"Error:", "Exception:", "429", "RESOURCE_EXHAUSTED", "Quota"}

// Story is the single persisted entity. Title, Author, URL and BodyText are
// immutable once fetched; AIAnalysis and ScaryScore are written later by the
// analyzer and may be overwritten by the repair sweep.
type Story struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ExternalID string    `db:"external_id" json:"external_id"` // e.g. Reddit post id, "yt_"+videoID
	Title      string    `db:"title" json:"title"`
	Author     string    `db:"author" json:"author"`
	URL        string    `db:"url" json:"url"`
	BodyText   string    `db:"body_text" json:"body_text"`
	AIAnalysis string    `db:"ai_analysis" json:"ai_analysis"` // empty = not yet analyzed
	ScaryScore *float64  `db:"scary_score" json:"scary_score"` // nil = not analyzed or unparseable
	Upvotes    int       `db:"upvotes" json:"upvotes"`
	FetchedAt  time.Time `db:"fetched_at" json:"fetched_at"`
}

// InvalidAnalysis reports whether an analysis text needs (re)processing:
// empty, mock-tagged, or containing a provider error keyword. This one
// predicate drives ingestion self-healing, the consumer idempotency guard
// and the repair sweep.
func InvalidAnalysis(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	if strings.HasPrefix(text, MockAnalysisPrefix) {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range ErrorKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// AnalysisPending reports whether the story still needs an analyzer run:
// the text itself is invalid, or it looks fine but the score never parsed.
func (s *Story) AnalysisPending() bool {
	if InvalidAnalysis(s.AIAnalysis) {
		return true
	}
	return s.ScaryScore == nil
}
