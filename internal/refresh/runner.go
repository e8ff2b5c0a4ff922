// Package refresh implements the paced, resumable logo refresh cycle.
//
// The protocol was designed for serverless invocations that share no memory:
// every piece of pacing and backoff state is re-read from the external
// key-value store on each tick, and at most one ticker is processed per
// tick. The same discipline is kept here even though this host is a
// long-running process, so overlapping triggers and restarts behave
// identically.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quotedeck/logocache/internal/blob"
	"github.com/quotedeck/logocache/internal/config"
	"github.com/quotedeck/logocache/internal/kv"
	"github.com/quotedeck/logocache/internal/logger"
	"github.com/quotedeck/logocache/internal/resolver"
	"github.com/quotedeck/logocache/internal/state"
	"github.com/quotedeck/logocache/internal/upstream"
)

// Clock returns the current time. It can be replaced for testing.
type Clock func() time.Time

// Resolver is the part of the image resolver the runner needs.
type Resolver interface {
	Resolve(ctx context.Context, ticker string) (*resolver.Resolved, error)
}

// Runner drives the cycle state machine. It is stateless between calls; all
// cycle state lives in the state store.
type Runner struct {
	cfg      *config.Config
	st       *state.Store
	blobs    blob.Store
	resolver Resolver
	clock    Clock
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the time source, for tests.
func WithClock(clock Clock) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, st *state.Store, blobs blob.Store, res Resolver, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		st:       st,
		blobs:    blobs,
		resolver: res,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartCycle arms a new daily cycle: it publishes the ticker list, resets
// the cursor, clears any stale backoff, and opens the cycle window sized to
// walk every ticker at the configured pace.
func (r *Runner) StartCycle(ctx context.Context) error {
	now := r.clock()

	if err := r.st.PutTickers(ctx, r.cfg.Tickers); err != nil {
		return fmt.Errorf("publishing ticker list: %w", err)
	}
	if err := r.st.SetCursor(ctx, 0); err != nil {
		return fmt.Errorf("resetting cursor: %w", err)
	}
	if err := r.st.ClearBlockedUntil(ctx); err != nil {
		return fmt.Errorf("clearing backoff: %w", err)
	}

	until := now.Add(r.cfg.CycleWindow(len(r.cfg.Tickers)))
	if err := r.st.SetCycleActiveUntil(ctx, until); err != nil {
		return fmt.Errorf("arming cycle window: %w", err)
	}

	logger.Info(ctx, "Cycle armed",
		"tickers", len(r.cfg.Tickers),
		"active-until", until.Format(time.RFC3339))
	return nil
}

// Tick advances the cycle by at most one ticker. Every branch produces an
// audit record; only store failures abort without one so the outer trigger
// can retry cleanly.
func (r *Runner) Tick(ctx context.Context) (*state.Outcome, error) {
	now := r.clock()
	tickID := uuid.NewString()

	activeUntil, active, err := r.st.CycleActiveUntil(ctx)
	if err != nil {
		return nil, err
	}
	if !active || now.After(activeUntil) {
		return r.finish(ctx, now, &state.Outcome{
			TickID: tickID,
			Status: state.StatusNoop,
			Detail: "cycle idle",
			At:     now,
		})
	}

	// Collapse overlapping triggers into one effective tick per interval.
	lastRun, stamped, err := r.st.LastMinuteRun(ctx)
	if err != nil {
		return nil, err
	}
	if stamped && now.Sub(lastRun) < r.cfg.Refresh.Debounce {
		return r.finish(ctx, now, &state.Outcome{
			TickID: tickID,
			Status: state.StatusNoop,
			Detail: "debounced",
			At:     now,
		})
	}
	if err := r.st.SetLastMinuteRun(ctx, now); err != nil {
		return nil, err
	}

	blockedUntil, blocked, err := r.st.BlockedUntil(ctx)
	if err != nil {
		return nil, err
	}
	if blocked && now.Before(blockedUntil) {
		return r.finish(ctx, now, &state.Outcome{
			TickID: tickID,
			Status: state.StatusNoop,
			Detail: "blocked until " + blockedUntil.Format(time.RFC3339),
			At:     now,
		})
	}

	tickers, err := r.tickers(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := r.st.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	if cursor >= len(tickers) {
		cursor = 0
	}
	ticker := tickers[cursor]

	outcome, advance, err := r.processTicker(ctx, ticker, now, activeUntil)
	if err != nil {
		return nil, err
	}
	outcome.TickID = tickID

	if err := r.st.PutTickerResult(ctx, ticker, outcome); err != nil {
		return nil, err
	}
	if advance {
		if err := r.advanceCursor(ctx, cursor, len(tickers)); err != nil {
			return nil, err
		}
	}
	return r.finish(ctx, now, outcome)
}

// processTicker handles exactly one ticker and reports whether the cursor
// should advance.
func (r *Runner) processTicker(ctx context.Context, ticker string, now, activeUntil time.Time) (*state.Outcome, bool, error) {
	meta, err := r.st.Meta(ctx, ticker)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, false, err
	}

	if IsFresh(meta, now, r.cfg.Refresh.TTL) {
		logger.Debug(ctx, "Logo still fresh", "ticker", ticker)
		return &state.Outcome{
			Ticker: ticker,
			Status: state.StatusSkipFresh,
			At:     now,
		}, true, nil
	}

	resolved, err := r.resolver.Resolve(ctx, ticker)
	switch {
	case err == nil:
		key := resolver.ObjectKey(ticker, resolved.ContentType)
		if err := r.blobs.Put(ctx, key, resolved.Data, resolved.ContentType); err != nil {
			return nil, false, err
		}
		// Meta is written after the blob so a record never points at a
		// missing object.
		if err := r.st.PutMeta(ctx, &state.StoredMeta{
			Ticker:    ticker,
			Key:       key,
			Mime:      resolved.ContentType,
			Bytes:     resolved.Bytes,
			SourceURL: resolved.SourceURL,
			UpdatedAt: now,
		}); err != nil {
			return nil, false, err
		}
		logger.Info(ctx, "Logo updated", "ticker", ticker, "bytes", resolved.Bytes, "mime", resolved.ContentType)
		return &state.Outcome{
			Ticker: ticker,
			Status: state.StatusUpdated,
			At:     now,
		}, true, nil

	case isRateLimited(err):
		rle, _ := upstream.IsRateLimited(err)
		delay := ResumeDelay(rle.RetryAfter, now, r.cfg.Refresh.RetryFallback)
		if err := r.st.SetBlockedUntil(ctx, now.Add(delay)); err != nil {
			return nil, false, err
		}
		// Extend the window by the same delay so the paced walk can resume
		// after the backoff instead of expiring mid-cycle.
		if err := r.st.SetCycleActiveUntil(ctx, activeUntil.Add(delay)); err != nil {
			return nil, false, err
		}
		logger.Warn(ctx, "Upstream rate limited", "ticker", ticker, "resume-in", delay.String())
		return &state.Outcome{
			Ticker: ticker,
			Status: state.StatusRateLimited,
			Detail: "resume in " + delay.String(),
			At:     now,
		}, false, nil

	case errors.Is(err, upstream.ErrNotFound):
		logger.Warn(ctx, "No logo reference upstream", "ticker", ticker)
		return &state.Outcome{
			Ticker: ticker,
			Status: state.StatusNotFound,
			Detail: err.Error(),
			At:     now,
		}, true, nil

	default:
		// Advancing past a failing ticker avoids stalling the whole cycle on
		// one bad item.
		logger.Error(ctx, "Logo refresh failed", "ticker", ticker, "err", err)
		return &state.Outcome{
			Ticker: ticker,
			Status: state.StatusError,
			Detail: err.Error(),
			At:     now,
		}, true, nil
	}
}

func (r *Runner) advanceCursor(ctx context.Context, cursor, n int) error {
	next := cursor + 1
	if next >= n {
		next = 0
		// Wrapping to zero completes the cycle.
		if err := r.st.ClearCycleWindow(ctx); err != nil {
			return err
		}
		logger.Info(ctx, "Cycle complete", "tickers", n)
	}
	return r.st.SetCursor(ctx, next)
}

// finish writes the global audit record for this tick.
func (r *Runner) finish(ctx context.Context, now time.Time, outcome *state.Outcome) (*state.Outcome, error) {
	if err := r.st.SetLastRun(ctx, now); err != nil {
		return nil, err
	}
	if err := r.st.PutLastResult(ctx, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

// tickers returns the published list, falling back to the configured list
// when no cycle has published one yet.
func (r *Runner) tickers(ctx context.Context) ([]string, error) {
	tickers, err := r.st.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return r.cfg.Tickers, nil
	}
	return tickers, nil
}

func isRateLimited(err error) bool {
	_, ok := upstream.IsRateLimited(err)
	return ok
}
