package bulk

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/redis-bulk-actions/internal/domain/model"
)

func makeErrors(prefix string, n int) []model.ItemError {
	out := make([]model.ItemError, n)
	for i := range n {
		out[i] = model.ItemError{Key: fmt.Sprintf("%s:%d", prefix, i), Error: "NOPERM"}
	}
	return out
}

func makeKeys(prefix string, n int) []string {
	out := make([]string, n)
	for i := range n {
		out[i] = fmt.Sprintf("%s:%d", prefix, i)
	}
	return out
}

func TestSummary_CountersAccumulate(t *testing.T) {
	s := NewSummary(0)
	for _, n := range []int64{1, 0, 5, 10} {
		s.AddProcessed(n)
		s.AddSuccess(n * 2)
		s.AddFailed(n * 3)
	}

	ov := s.Overview()
	assert.Equal(t, int64(16), ov.Processed)
	assert.Equal(t, int64(32), ov.Succeeded)
	assert.Equal(t, int64(48), ov.Failed)
}

func TestSummary_AddErrorsCapsRetainedList(t *testing.T) {
	s := NewSummary(0)
	s.AddErrors(makeErrors("a", 1))
	s.AddErrors(makeErrors("b", 100))
	s.AddErrors(makeErrors("c", 1000))

	ov := s.Overview()
	assert.Equal(t, int64(1101), ov.Failed)
	require.Len(t, ov.Errors, MaxStoredErrors)
	assert.Equal(t, "a:0", ov.Errors[0].Key)
	assert.Equal(t, "b:0", ov.Errors[1].Key)
	assert.Equal(t, "b:99", ov.Errors[100].Key)
	assert.Equal(t, "c:0", ov.Errors[101].Key)
	assert.Equal(t, "c:398", ov.Errors[MaxStoredErrors-1].Key)
}

func TestSummary_AddKeysOverflow(t *testing.T) {
	s := NewSummary(0)
	s.AddKeys(makeKeys("first", 8000))
	s.AddKeys(makeKeys("second", 5000))

	assert.True(t, s.HasMore())
	assert.Equal(t, int64(13000), s.TotalProcessedItems())

	ov := s.Overview()
	require.Len(t, ov.Keys, DefaultMaxKeys)
	assert.Equal(t, "first:0", ov.Keys[0])
	assert.Equal(t, "second:0", ov.Keys[8000])
	assert.Equal(t, "second:1999", ov.Keys[DefaultMaxKeys-1])
}

func TestSummary_AddKeysWithinCap(t *testing.T) {
	s := NewSummary(0)
	s.AddKeys([]string{"k1", "k2"})

	assert.False(t, s.HasMore())
	assert.Equal(t, int64(2), s.TotalProcessedItems())
	assert.Equal(t, []string{"k1", "k2"}, s.Overview().Keys)
}

func TestSummary_AddKeysExactlyAtCap(t *testing.T) {
	s := NewSummary(3)
	s.AddKeys([]string{"a", "b", "c"})
	assert.False(t, s.HasMore())

	s.AddKeys([]string{"d"})
	assert.True(t, s.HasMore())
	assert.Equal(t, []string{"a", "b", "c"}, s.Overview().Keys)
}

func TestSummary_OverviewDrainsErrors(t *testing.T) {
	s := NewSummary(0)
	s.AddProcessed(3)
	s.AddSuccess(1)
	s.AddKeys([]string{"ok"})
	s.AddErrors([]model.ItemError{{Key: "x", Error: "boom"}, {Key: "y", Error: "boom"}})

	first := s.Overview()
	require.Len(t, first.Errors, 2)

	second := s.Overview()
	assert.Empty(t, second.Errors)
	assert.NotNil(t, second.Errors)
	assert.Equal(t, first.Processed, second.Processed)
	assert.Equal(t, first.Succeeded, second.Succeeded)
	assert.Equal(t, first.Failed, second.Failed)
	assert.Equal(t, first.Keys, second.Keys)
}

func TestSummary_PeekKeepsErrors(t *testing.T) {
	s := NewSummary(0)
	s.AddErrors([]model.ItemError{{Key: "x", Error: "boom"}})

	peeked := s.Peek()
	require.Len(t, peeked.Errors, 1)
	peeked.Errors[0].Key = "mutated"

	drained := s.Overview()
	require.Len(t, drained.Errors, 1)
	assert.Equal(t, "x", drained.Errors[0].Key)
	assert.Empty(t, s.Peek().Errors)
	assert.NotNil(t, s.Peek().Errors)
}

func TestSummary_ErrorsRetainedAfterDrainRespectCap(t *testing.T) {
	s := NewSummary(0)
	s.AddErrors(makeErrors("a", MaxStoredErrors))
	_ = s.Overview()

	s.AddErrors(makeErrors("b", 10))
	ov := s.Overview()
	assert.Len(t, ov.Errors, 10)
	assert.Equal(t, int64(MaxStoredErrors+10), ov.Failed)
}

func TestSummary_ConcurrentWriters(t *testing.T) {
	s := NewSummary(100)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				s.AddProcessed(1)
				s.AddKeys([]string{fmt.Sprintf("%d:%d", i, j)})
				_ = s.Overview()
			}
		}()
	}
	wg.Wait()

	ov := s.Overview()
	assert.Equal(t, int64(800), ov.Processed)
	assert.Len(t, ov.Keys, 100)
	assert.Equal(t, int64(800), s.TotalProcessedItems())
}

func TestMergeSummaries(t *testing.T) {
	merged := mergeSummaries([]model.SummaryOverview{
		{Processed: 5, Succeeded: 4, Failed: 1, Errors: makeErrors("a", 300), Keys: []string{"a"}},
		{Processed: 7, Succeeded: 2, Failed: 5, Errors: makeErrors("b", 300), Keys: []string{"b", "c"}},
	})

	assert.Equal(t, int64(12), merged.Processed)
	assert.Equal(t, int64(6), merged.Succeeded)
	assert.Equal(t, int64(6), merged.Failed)
	require.Len(t, merged.Errors, MaxStoredErrors)
	assert.Equal(t, "b:199", merged.Errors[MaxStoredErrors-1].Key)
	assert.Equal(t, []string{"a", "b", "c"}, merged.Keys)
}

func TestMergeProgress(t *testing.T) {
	got := mergeProgress([]model.Progress{{Total: 10, Scanned: 5}, {Total: 20, Scanned: 15}})
	assert.Equal(t, model.Progress{Total: 30, Scanned: 20}, got)
}
