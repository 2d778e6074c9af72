package bulk

import (
	"sync"

	"github.com/target/redis-bulk-actions/internal/domain/model"
)

// Summary limits.
const (
	MaxStoredErrors = 500
	DefaultMaxKeys  = 10_000
)

// Summary is a bounded accumulator of per-key outcomes for one runner.
//
// Counters are exact. The error and key lists are capped; anything past the cap is
// counted but not retained. Overview drains the retained errors: each error is reported
// by at most one call. It is safe for concurrent use.
type Summary struct {
	mu sync.Mutex

	processed int64
	succeeded int64
	failed    int64

	errors []model.ItemError

	keys      []string
	maxKeys   int
	totalKeys int64
	hasMore   bool
}

// NewSummary returns an empty summary retaining at most maxKeys affected keys.
// A non-positive maxKeys selects DefaultMaxKeys.
func NewSummary(maxKeys int) *Summary {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Summary{maxKeys: maxKeys}
}

// AddProcessed increments the processed counter.
func (s *Summary) AddProcessed(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.processed += n
	s.mu.Unlock()
}

// AddSuccess increments the succeeded counter.
func (s *Summary) AddSuccess(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.succeeded += n
	s.mu.Unlock()
}

// AddFailed increments the failed counter.
func (s *Summary) AddFailed(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.failed += n
	s.mu.Unlock()
}

// AddErrors counts every item as failed and retains items up to MaxStoredErrors.
func (s *Summary) AddErrors(items []model.ItemError) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed += int64(len(items))
	if room := MaxStoredErrors - len(s.errors); room > 0 {
		s.errors = append(s.errors, items[:min(room, len(items))]...)
	}
}

// AddKeys counts every key and retains keys up to the configured maximum.
// Once a key has been dropped HasMore stays true.
func (s *Summary) AddKeys(keys []string) {
	if len(keys) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalKeys += int64(len(keys))
	room := s.maxKeys - len(s.keys)
	if room > 0 {
		s.keys = append(s.keys, keys[:min(room, len(keys))]...)
	}
	if s.totalKeys > int64(s.maxKeys) {
		s.hasMore = true
	}
}

// HasMore reports whether affected keys were dropped because of the cap.
func (s *Summary) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// TotalProcessedItems returns the exact number of keys ever offered to AddKeys.
func (s *Summary) TotalProcessedItems() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalKeys
}

// Overview returns a snapshot of the summary and clears the retained error list.
// Counters and the key list are left untouched.
func (s *Summary) Overview() model.SummaryOverview {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.snapshotLocked()
	s.errors = nil
	return out
}

// Peek returns the same snapshot as Overview without clearing the retained errors.
func (s *Summary) Peek() model.SummaryOverview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Summary) snapshotLocked() model.SummaryOverview {
	out := model.SummaryOverview{
		Processed: s.processed,
		Succeeded: s.succeeded,
		Failed:    s.failed,
		Errors:    append([]model.ItemError{}, s.errors...),
		Keys:      append([]string(nil), s.keys...),
	}
	return out
}

// mergeSummaries sums counters, concatenates errors (truncated to MaxStoredErrors) and keys
// in argument order.
func mergeSummaries(parts []model.SummaryOverview) model.SummaryOverview {
	out := model.SummaryOverview{
		Errors: []model.ItemError{},
		Keys:   []string{},
	}
	for _, p := range parts {
		out.Processed += p.Processed
		out.Succeeded += p.Succeeded
		out.Failed += p.Failed
		if room := MaxStoredErrors - len(out.Errors); room > 0 {
			out.Errors = append(out.Errors, p.Errors[:min(room, len(p.Errors))]...)
		}
		out.Keys = append(out.Keys, p.Keys...)
	}
	return out
}

func mergeProgress(parts []model.Progress) model.Progress {
	var out model.Progress
	for _, p := range parts {
		out.Total += p.Total
		out.Scanned += p.Scanned
	}
	return out
}
