package runner

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ryosukesatoh/repost-digest/internal/collector"
	"github.com/ryosukesatoh/repost-digest/internal/digest"
	"github.com/ryosukesatoh/repost-digest/internal/summarizer"
)

// Writer maintains the per-day destination record.
type Writer interface {
	GetOrCreateToday(ctx context.Context) (digest.Record, error)
	AppendItems(ctx context.Context, rec digest.Record, items []collector.Repost, summaries []string) error
	SetContent(ctx context.Context, rec digest.Record, text string) error
}

// Pipeline composes collection, summarization, and the digest write.
type Pipeline struct {
	collector  collector.Collector
	summarizer summarizer.Summarizer
	writer     Writer
	log        logrus.FieldLogger
}

func New(c collector.Collector, s summarizer.Summarizer, w Writer, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		collector:  c,
		summarizer: s,
		writer:     w,
		log:        log,
	}
}

// Run executes the full pipeline once. A day with no reposts is a
// success: the record gets the zero-count content and the run stops.
// Summarization failures never surface here; every other stage's error
// is fatal.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("Resolving today's record...")
	rec, err := p.writer.GetOrCreateToday(ctx)
	if err != nil {
		return fmt.Errorf("runner: record lookup failed: %w", err)
	}

	p.log.Info("Collecting today's reposts...")
	items, err := p.collector.CollectToday(ctx)
	if err != nil {
		return fmt.Errorf("runner: collect failed: %w", err)
	}

	if len(items) == 0 {
		content := p.summarizer.SummarizeDay(ctx, nil)
		if err := p.writer.SetContent(ctx, rec, content); err != nil {
			return fmt.Errorf("runner: content update failed: %w", err)
		}
		p.log.Info("No reposts today")
		return nil
	}

	p.log.WithField("items", len(items)).Info("Summarizing items...")
	summaries := p.summarizer.SummarizeItems(ctx, items)

	if err := p.writer.AppendItems(ctx, rec, items, summaries); err != nil {
		return fmt.Errorf("runner: append failed: %w", err)
	}

	content := p.summarizer.SummarizeDay(ctx, items)
	if err := p.writer.SetContent(ctx, rec, content); err != nil {
		return fmt.Errorf("runner: content update failed: %w", err)
	}

	p.log.WithFields(logrus.Fields{"items": len(items), "content": content}).Info("Pipeline completed")
	return nil
}
