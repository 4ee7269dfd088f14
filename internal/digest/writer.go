package digest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ryosukesatoh/repost-digest/internal/collector"
	"github.com/ryosukesatoh/repost-digest/internal/summarizer"
	"github.com/ryosukesatoh/repost-digest/internal/timewindow"
)

// maxBlocksPerAppend is the destination's per-call block limit.
const maxBlocksPerAppend = 90

// appendPause spaces out consecutive chunk writes.
const appendPause = 400 * time.Millisecond

// Store is the destination document store: one record per day, found by
// its date field.
type Store interface {
	FindDaily(ctx context.Context, date string) (string, bool, error)
	CreateDaily(ctx context.Context, title, date string) (string, error)
	AppendHeading(ctx context.Context, pageID, text string) error
	AppendBulleted(ctx context.Context, pageID string, texts []string) error
	UpdateContent(ctx context.Context, pageID, text string) error
}

// Markers tracks which items were already appended on a given date.
type Markers interface {
	Marked(date, url string) (bool, error)
	Mark(date string, urls []string) error
}

// Record is a handle to the day's destination record.
type Record struct {
	PageID  string
	Date    timewindow.Date
	Created bool
}

// Writer maintains the per-day digest record: find-or-create, chunked
// item appends, and the final content update.
type Writer struct {
	// DryRun renders everything to Out instead of touching the store.
	DryRun bool
	// Out receives dry-run output. Defaults to stdout.
	Out io.Writer
	// Markers, when set, suppresses re-appending items a previous run
	// already wrote for the same day.
	Markers Markers

	store     Store
	window    *timewindow.Window
	log       logrus.FieldLogger
	chunkSize int
	pause     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewWriter(store Store, window *timewindow.Window, log logrus.FieldLogger) *Writer {
	return &Writer{
		Out:       os.Stdout,
		store:     store,
		window:    window,
		log:       log,
		chunkSize: maxBlocksPerAppend,
		pause:     appendPause,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetOrCreateToday returns the handle of today's record, creating it on
// first run. Reruns within the same civil day attach to the existing
// record. New records get a heading block and a pending-content
// placeholder so a partial failure downstream still leaves a valid,
// visibly incomplete record.
func (w *Writer) GetOrCreateToday(ctx context.Context) (Record, error) {
	today := w.window.Today()

	if w.DryRun {
		fmt.Fprintf(w.Out, "--- dry run: daily record %s ---\n", today)
		return Record{PageID: "dry-run", Date: today}, nil
	}

	pageID, found, err := w.store.FindDaily(ctx, today.String())
	if err != nil {
		return Record{}, fmt.Errorf("digest: failed to query today's record: %w", err)
	}
	if found {
		w.log.WithField("page", pageID).Info("Using existing daily record")
		return Record{PageID: pageID, Date: today}, nil
	}

	pageID, err = w.store.CreateDaily(ctx, "Daily Summary "+today.String(), today.String())
	if err != nil {
		return Record{}, fmt.Errorf("digest: failed to create today's record: %w", err)
	}
	if err := w.store.AppendHeading(ctx, pageID, fmt.Sprintf("Digest for %s", today)); err != nil {
		return Record{}, fmt.Errorf("digest: failed to append heading: %w", err)
	}
	if err := w.store.UpdateContent(ctx, pageID, "summary pending"); err != nil {
		return Record{}, fmt.Errorf("digest: failed to set placeholder content: %w", err)
	}

	w.log.WithField("page", pageID).Info("Created daily record")
	return Record{PageID: pageID, Date: today, Created: true}, nil
}

// AppendItems renders one block per item and appends them to the record
// in store-size-safe chunks, pausing between chunk writes.
func (w *Writer) AppendItems(ctx context.Context, rec Record, items []collector.Repost, summaries []string) error {
	blocks := make([]string, 0, len(items))
	urls := make([]string, 0, len(items))
	for i, it := range items {
		summary := summarizer.NoSummary
		if i < len(summaries) && summaries[i] != "" {
			summary = summaries[i]
		}
		if skip := w.alreadyAppended(rec, it.URL); skip {
			continue
		}
		blocks = append(blocks, renderItem(it, summary))
		urls = append(urls, it.URL)
	}

	if w.DryRun {
		for _, b := range blocks {
			fmt.Fprintln(w.Out, b)
			fmt.Fprintln(w.Out, strings.Repeat("-", 32))
		}
		return nil
	}

	for start := 0; start < len(blocks); start += w.chunkSize {
		end := start + w.chunkSize
		if end > len(blocks) {
			end = len(blocks)
		}
		if start > 0 {
			if err := w.sleep(ctx, w.pause); err != nil {
				return err
			}
		}
		if err := w.store.AppendBulleted(ctx, rec.PageID, blocks[start:end]); err != nil {
			return fmt.Errorf("digest: failed to append items: %w", err)
		}
		w.markAppended(rec, urls[start:end])
	}

	w.log.WithFields(logrus.Fields{"page": rec.PageID, "items": len(blocks)}).Info("Appended item blocks")
	return nil
}

func (w *Writer) alreadyAppended(rec Record, url string) bool {
	if w.Markers == nil || w.DryRun {
		return false
	}
	marked, err := w.Markers.Marked(rec.Date.String(), url)
	if err != nil {
		w.log.WithError(err).Warn("Marker lookup failed, item will be appended")
		return false
	}
	if marked {
		w.log.WithField("url", url).Info("Skipping already-appended item")
	}
	return marked
}

func (w *Writer) markAppended(rec Record, urls []string) {
	if w.Markers == nil || len(urls) == 0 {
		return
	}
	// Marker writes are best-effort: a failure costs at most a
	// duplicate block on the next rerun.
	if err := w.Markers.Mark(rec.Date.String(), urls); err != nil {
		w.log.WithError(err).Warn("Failed to record appended-item markers")
	}
}

// SetContent writes the final digest text to the record's content
// field.
func (w *Writer) SetContent(ctx context.Context, rec Record, text string) error {
	if w.DryRun {
		fmt.Fprintf(w.Out, "--- dry run: content = %s ---\n", text)
		return nil
	}
	if err := w.store.UpdateContent(ctx, rec.PageID, text); err != nil {
		return fmt.Errorf("digest: failed to update content: %w", err)
	}
	return nil
}

func renderItem(it collector.Repost, summary string) string {
	author := it.AuthorName
	if it.AuthorUsername != "" {
		author = fmt.Sprintf("%s (@%s)", it.AuthorName, it.AuthorUsername)
	}
	// Indent continuation lines of multi-sentence summaries.
	summary = strings.ReplaceAll(summary, "\n", "\n        ")

	return strings.Join([]string{
		it.URL,
		"Author: " + author,
		"Text: " + it.Text,
		"Summary: " + summary,
	}, "\n")
}
