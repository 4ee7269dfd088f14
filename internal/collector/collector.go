package collector

import (
	"context"
	"time"
)

// Repost is one repost of someone else's post, resolved to the original
// author and text. Text is whitespace-normalized. RepostedAt is the
// creation time of the repost itself, not of the original post.
type Repost struct {
	URL            string
	AuthorName     string
	AuthorUsername string
	Text           string
	RepostedAt     time.Time
}

// Collector returns the authenticated user's reposts for the current
// civil day, ordered by repost time ascending.
type Collector interface {
	CollectToday(ctx context.Context) ([]Repost, error)
}
