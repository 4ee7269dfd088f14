package summarizer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ryosukesatoh/repost-digest/internal/collector"
	"github.com/ryosukesatoh/repost-digest/internal/timewindow"
)

// dayDigestMax caps how many items feed the whole-day summary prompt.
const dayDigestMax = 8

// Options controls batch summarization. Lines <= 0 or Enabled == false
// disables generation entirely.
type Options struct {
	Enabled   bool
	Lines     int
	Language  string
	BatchSize int
}

// BatchSummarizer asks the generation service for numbered one-line
// summaries in fixed-size batches and recovers from malformed output.
type BatchSummarizer struct {
	gen     Generator
	retrier Retrier
	window  *timewindow.Window
	opts    Options
	log     logrus.FieldLogger
}

func NewBatch(gen Generator, retrier Retrier, window *timewindow.Window, opts Options, log logrus.FieldLogger) *BatchSummarizer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	if opts.Language == "" {
		opts.Language = "ja"
	}
	return &BatchSummarizer{
		gen:     gen,
		retrier: retrier,
		window:  window,
		opts:    opts,
		log:     log,
	}
}

func (s *BatchSummarizer) disabled() bool {
	return !s.opts.Enabled || s.opts.Lines <= 0 || s.gen == nil
}

// SummarizeItems returns exactly one summary per item. Generation
// failures and malformed responses degrade to placeholders; the 1:1
// length contract holds unconditionally.
func (s *BatchSummarizer) SummarizeItems(ctx context.Context, items []collector.Repost) []string {
	if s.disabled() {
		out := make([]string, len(items))
		for i := range out {
			out[i] = NoSummary
		}
		return out
	}

	out := make([]string, 0, len(items))
	for start := 0; start < len(items); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(items) {
			end = len(items)
		}
		out = append(out, s.summarizeChunk(ctx, items[start:end])...)
	}
	return out
}

func (s *BatchSummarizer) summarizeChunk(ctx context.Context, chunk []collector.Repost) []string {
	prompt := s.buildBatchPrompt(chunk)

	var respText string
	err := s.retrier.Do(ctx, "summarize-batch", func(ctx context.Context) error {
		text, genErr := s.gen.Generate(ctx, prompt)
		if genErr != nil {
			return genErr
		}
		respText = text
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("items", len(chunk)).Warn("Batch summarization failed, using placeholders")
		placeholders := make([]string, len(chunk))
		for i := range placeholders {
			placeholders[i] = NoSummary
		}
		return placeholders
	}

	return parseNumbered(respText, len(chunk))
}

func (s *BatchSummarizer) buildBatchPrompt(chunk []collector.Repost) string {
	lines := clamp(s.opts.Lines, 1, 3)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Summarize each of the following %d texts in %d sentences each.\n", len(chunk), lines))
	sb.WriteString(fmt.Sprintf("Respond only in the language %q.\n", s.opts.Language))
	sb.WriteString(fmt.Sprintf("Output exactly %d lines, one per text, each formatted as \"n) summary\".\n", len(chunk)))
	sb.WriteString("Texts:\n")
	for i, it := range chunk {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, it.Text))
	}
	return sb.String()
}

var numberedLineRegex = regexp.MustCompile(`(?m)^\s*(\d+)\)\s*(.+)$`)

// parseNumbered extracts "n) text" lines into their 1-based positions.
// When the strict format does not yield one line per item, the
// response's non-blank lines are assigned positionally instead, with
// placeholders padding any shortfall. The generation service's output
// format is not contractually guaranteed.
func parseNumbered(resp string, n int) []string {
	out := make([]string, n)
	matched := 0
	for _, m := range numberedLineRegex.FindAllStringSubmatch(resp, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > n {
			continue
		}
		if out[idx-1] == "" {
			matched++
		}
		out[idx-1] = strings.TrimSpace(m[2])
	}
	if matched == n {
		return out
	}

	var nonBlank []string
	for _, line := range strings.Split(resp, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			nonBlank = append(nonBlank, trimmed)
		}
	}
	for i := 0; i < n; i++ {
		if i < len(nonBlank) {
			out[i] = nonBlank[i]
		} else {
			out[i] = NoSummary
		}
	}
	return out
}

// SummarizeDay produces the whole-day digest from at most the first
// dayDigestMax items. Any failure returns the count fallback;
// page-level summarization never propagates an error.
func (s *BatchSummarizer) SummarizeDay(ctx context.Context, items []collector.Repost) string {
	fallback := fmt.Sprintf("%d items (%s)", len(items), s.window.Today())
	if s.disabled() || len(items) == 0 {
		return fallback
	}

	head := items
	if len(head) > dayDigestMax {
		head = head[:dayDigestMax]
	}

	lines := clamp(s.opts.Lines, 2, 3)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Summarize the following content in %d sentences.\n", lines))
	sb.WriteString(fmt.Sprintf("Respond only in the language %q.\n", s.opts.Language))
	for _, it := range head {
		sb.WriteString(fmt.Sprintf("- %s\n", it.Text))
	}

	var respText string
	err := s.retrier.Do(ctx, "summarize-day", func(ctx context.Context) error {
		text, genErr := s.gen.Generate(ctx, sb.String())
		if genErr != nil {
			return genErr
		}
		respText = text
		return nil
	})
	if err != nil {
		s.log.WithError(err).Warn("Day summarization failed, using fallback")
		return fallback
	}
	if respText == "" {
		return fallback
	}
	return respText
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
