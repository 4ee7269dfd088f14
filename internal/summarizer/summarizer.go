package summarizer

import (
	"context"

	"github.com/ryosukesatoh/repost-digest/internal/collector"
)

// NoSummary is the placeholder used when summarization is disabled or
// a summary could not be produced for an item.
const NoSummary = "(no summary)"

// Summarizer produces per-item summaries and a whole-day digest.
// Both operations are best-effort: they degrade to placeholders and
// fallback strings instead of failing.
type Summarizer interface {
	// SummarizeItems returns exactly one summary per input item.
	SummarizeItems(ctx context.Context, items []collector.Repost) []string
	// SummarizeDay returns a short digest of the day's items, or a
	// deterministic "<n> items (<date>)" fallback.
	SummarizeDay(ctx context.Context, items []collector.Repost) string
}

// Generator is a free-text generation service: prompt in, text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retrier shields generation calls from rate limits and transient
// upstream failures.
type Retrier interface {
	Do(ctx context.Context, label string, op func(context.Context) error) error
}
