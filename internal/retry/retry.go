package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusError carries the HTTP status and, when available, the remote
// collaborator's error payload. The scheduler classifies retryability
// from the code; the payload is surfaced in diagnostics.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retryable reports whether an HTTP status code is worth retrying.
// Only rate limiting (429) and server errors (5xx) qualify; other 4xx
// are client errors and retrying them cannot help.
func Retryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// Scheduler executes remote calls with capped exponential backoff and
// enforces a minimum spacing between successful calls so the caller's
// aggregate request rate stays under a requests-per-minute budget.
type Scheduler struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	MinInterval time.Duration

	log    logrus.FieldLogger
	rng    *rand.Rand
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter time.Duration
}

// NewScheduler returns a Scheduler with the default policy: 5 attempts,
// 1s base backoff capped at 8s, and call spacing derived from maxRPM.
func NewScheduler(maxRPM int, log logrus.FieldLogger) *Scheduler {
	if maxRPM < 1 {
		maxRPM = 1
	}
	return &Scheduler{
		MaxAttempts: 5,
		Base:        1 * time.Second,
		Cap:         8 * time.Second,
		MinInterval: time.Minute / time.Duration(maxRPM),
		log:         log,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
		sleep:       sleepCtx,
		jitter:      400 * time.Millisecond,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op, retrying on rate limits and server errors with backoff.
// After a successful call it pads the call's duration up to MinInterval
// before returning. Non-retryable errors and exhausted attempts return
// the last observed error.
func (s *Scheduler) Do(ctx context.Context, label string, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := s.Base << (attempt - 1)
			if backoff > s.Cap {
				backoff = s.Cap
			}
			delay := backoff + time.Duration(s.rng.Int63n(int64(s.jitter)))
			s.log.WithFields(logrus.Fields{"label": label, "attempt": attempt, "delay": delay}).
				Warn("Retrying after backoff")
			if err := s.sleep(ctx, delay); err != nil {
				return err
			}
		}

		start := s.now()
		err := op(ctx)
		if err == nil {
			if spent := s.now().Sub(start); spent < s.MinInterval {
				if err := s.sleep(ctx, s.MinInterval-spent); err != nil {
					return err
				}
			}
			return nil
		}

		lastErr = err
		if !retryableError(err) {
			return err
		}
	}
	return fmt.Errorf("retry: %s failed after %d attempts: %w", label, s.MaxAttempts, lastErr)
}

// retryableError classifies a failure. Errors without an HTTP status
// are treated as non-transient faults and abort immediately.
func retryableError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return Retryable(se.Code)
	}
	return false
}
