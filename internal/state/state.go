// Package state is the typed accessor layer over the key-value store. All
// scheduler state that must survive across invocations (cursor, cycle
// window, backoff, audit records) lives here, never in process memory.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/quotedeck/logocache/internal/kv"
)

// Key roles in the metadata store. Every key the service writes is listed
// here; nothing else touches the store with raw strings.
const (
	keyTickers        = "cfg:tickers"
	keyCursor         = "cycle:cursor"
	keyActiveUntil    = "cycle:active_until"
	keyBlockedUntil   = "cycle:blocked_until"
	keyLastMinuteRun  = "cycle:last_minute_run"
	keyLastRun        = "run:last"
	keyLastResult     = "run:last_result"
	tickerKeyPrefix   = "ticker:"
	tickerResultSufix = ":result"
)

// StoredMeta is the per-ticker record describing the cached logo.
type StoredMeta struct {
	Ticker    string    `json:"ticker"`
	Key       string    `json:"key"`
	Mime      string    `json:"mime"`
	Bytes     int       `json:"bytes"`
	SourceURL string    `json:"source_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status classifies the outcome of one processing attempt.
type Status string

const (
	StatusUpdated     Status = "updated"
	StatusSkipFresh   Status = "skip_fresh"
	StatusNotFound    Status = "not_found"
	StatusRateLimited Status = "rate_limited"
	StatusError       Status = "error"
	StatusNoop        Status = "noop"
)

// Outcome is the structured audit record written after every tick.
type Outcome struct {
	TickID string    `json:"tick_id"`
	Ticker string    `json:"ticker,omitempty"`
	Status Status    `json:"status"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Store provides typed access to the schema above.
type Store struct {
	kv kv.Store
}

// New wraps a kv.Store with the typed schema.
func New(store kv.Store) *Store {
	return &Store{kv: store}
}

// TickerKey returns the metadata key for a ticker.
func TickerKey(ticker string) string {
	return tickerKeyPrefix + ticker
}

// TickerResultKey returns the last-outcome key for a ticker.
func TickerResultKey(ticker string) string {
	return tickerKeyPrefix + ticker + tickerResultSufix
}

// PutTickers publishes the fixed ticker list for downstream consumers.
func (s *Store) PutTickers(ctx context.Context, tickers []string) error {
	return s.putJSON(ctx, keyTickers, tickers)
}

// Tickers returns the published ticker list. A missing key returns an empty
// list without error; callers decide whether that is fatal.
func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	var tickers []string
	err := s.getJSON(ctx, keyTickers, &tickers)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tickers, nil
}

// Meta returns the stored metadata for a ticker, or kv.ErrNotFound.
func (s *Store) Meta(ctx context.Context, ticker string) (*StoredMeta, error) {
	var meta StoredMeta
	if err := s.getJSON(ctx, TickerKey(ticker), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// PutMeta overwrites the stored metadata for a ticker.
func (s *Store) PutMeta(ctx context.Context, meta *StoredMeta) error {
	return s.putJSON(ctx, TickerKey(meta.Ticker), meta)
}

// PutTickerResult records the last outcome for a ticker.
func (s *Store) PutTickerResult(ctx context.Context, ticker string, o *Outcome) error {
	return s.putJSON(ctx, TickerResultKey(ticker), o)
}

// TickerResult returns the last outcome for a ticker, or kv.ErrNotFound.
func (s *Store) TickerResult(ctx context.Context, ticker string) (*Outcome, error) {
	var o Outcome
	if err := s.getJSON(ctx, TickerResultKey(ticker), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Cursor returns the index of the next ticker due for processing. A missing
// key means the cycle never ran and maps to 0.
func (s *Store) Cursor(ctx context.Context) (int, error) {
	val, err := s.kv.Get(ctx, keyCursor)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		// Corrupt cursor restarts the walk rather than pointing outside the
		// list.
		return 0, nil
	}
	return n, nil
}

// SetCursor writes the cursor.
func (s *Store) SetCursor(ctx context.Context, n int) error {
	return s.kv.Put(ctx, keyCursor, strconv.Itoa(n))
}

// CycleActiveUntil returns the end of the active cycle window, if any.
func (s *Store) CycleActiveUntil(ctx context.Context) (time.Time, bool, error) {
	return s.getTime(ctx, keyActiveUntil)
}

// SetCycleActiveUntil arms or extends the cycle window.
func (s *Store) SetCycleActiveUntil(ctx context.Context, t time.Time) error {
	return s.putTime(ctx, keyActiveUntil, t)
}

// ClearCycleWindow deactivates the cycle.
func (s *Store) ClearCycleWindow(ctx context.Context) error {
	return s.kv.Delete(ctx, keyActiveUntil)
}

// BlockedUntil returns the upstream backoff deadline, if any.
func (s *Store) BlockedUntil(ctx context.Context) (time.Time, bool, error) {
	return s.getTime(ctx, keyBlockedUntil)
}

// SetBlockedUntil records the upstream backoff deadline.
func (s *Store) SetBlockedUntil(ctx context.Context, t time.Time) error {
	return s.putTime(ctx, keyBlockedUntil, t)
}

// ClearBlockedUntil removes the upstream backoff deadline.
func (s *Store) ClearBlockedUntil(ctx context.Context) error {
	return s.kv.Delete(ctx, keyBlockedUntil)
}

// LastMinuteRun returns the debounce stamp, if any.
func (s *Store) LastMinuteRun(ctx context.Context) (time.Time, bool, error) {
	return s.getTime(ctx, keyLastMinuteRun)
}

// SetLastMinuteRun writes the debounce stamp.
func (s *Store) SetLastMinuteRun(ctx context.Context, t time.Time) error {
	return s.putTime(ctx, keyLastMinuteRun, t)
}

// SetLastRun records the global last-run timestamp.
func (s *Store) SetLastRun(ctx context.Context, t time.Time) error {
	return s.putTime(ctx, keyLastRun, t)
}

// LastRun returns the global last-run timestamp, if any.
func (s *Store) LastRun(ctx context.Context) (time.Time, bool, error) {
	return s.getTime(ctx, keyLastRun)
}

// PutLastResult records the global last-run outcome.
func (s *Store) PutLastResult(ctx context.Context, o *Outcome) error {
	return s.putJSON(ctx, keyLastResult, o)
}

// LastResult returns the global last-run outcome, or kv.ErrNotFound.
func (s *Store) LastResult(ctx context.Context) (*Outcome, error) {
	var o Outcome
	if err := s.getJSON(ctx, keyLastResult, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return s.kv.Put(ctx, key, string(data))
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	val, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), v); err != nil {
		return fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return nil
}

func (s *Store) putTime(ctx context.Context, key string, t time.Time) error {
	return s.kv.Put(ctx, key, t.UTC().Format(time.RFC3339Nano))
}

func (s *Store) getTime(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		// A corrupt timestamp is treated as absent; the scheduler rewrites it
		// on the next state change.
		return time.Time{}, false, nil
	}
	return t, true, nil
}
