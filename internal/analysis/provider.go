package analysis

import (
	"context"

	"darkgravity/internal/domain"
)

// FailureKind classifies a failed provider attempt. The chain continues to
// the next provider on either kind; the distinction feeds logging only.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureQuota
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureQuota:
		return "quota exceeded"
	default:
		return "failed"
	}
}

// Result is the tagged outcome of a single provider attempt. Adapters fold
// every error, including transport errors and timeouts, into a Result; they
// never return a Go error.
type Result struct {
	Text    string
	Kind    FailureKind
	Message string
}

func (r Result) OK() bool {
	return r.Kind == FailureNone
}

func Success(text string) Result {
	return Result{Text: text}
}

func QuotaFailure(message string) Result {
	return Result{Kind: FailureQuota, Message: message}
}

func Failure(message string) Result {
	return Result{Kind: FailureOther, Message: message}
}

// Provider is one external AI analysis backend.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, story *domain.Story) Result
}
