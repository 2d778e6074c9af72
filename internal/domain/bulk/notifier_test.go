package bulk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/redis-bulk-actions/internal/domain/model"
)

// queueWaiter returns overviews pushed onto pushes, or err when set.
type queueWaiter struct {
	calls  chan string
	pushes chan model.Overview
	err    error
}

func newQueueWaiter() *queueWaiter {
	return &queueWaiter{
		calls:  make(chan string, 8),
		pushes: make(chan model.Overview, 8),
	}
}

func (w *queueWaiter) WaitForOverview(ctx context.Context, jobID string) (model.Overview, error) {
	select {
	case w.calls <- jobID:
	default:
	}
	if w.err != nil {
		return model.Overview{}, w.err
	}
	select {
	case <-ctx.Done():
		return model.Overview{}, ctx.Err()
	case ov := <-w.pushes:
		return ov, nil
	}
}

func TestNewOverviewNotifierRequiresWaiter(t *testing.T) {
	notifier, err := NewOverviewNotifier(NotifierOptions{})
	require.ErrorIs(t, err, ErrWaiterRequired)
	assert.Nil(t, notifier)
}

func TestOverviewNotifier_DeliversPushes(t *testing.T) {
	waiter := newQueueWaiter()
	notifier, err := NewOverviewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe("job-1")
	defer unsub()

	select {
	case id := <-waiter.calls:
		assert.Equal(t, "job-1", id)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected waiter to be invoked")
	}

	waiter.pushes <- model.Overview{ID: "job-1", Status: model.StatusRunning}

	select {
	case ov := <-ch:
		assert.Equal(t, model.StatusRunning, ov.Status)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected overview to be delivered")
	}
}

func TestOverviewNotifier_BroadcastKeepsNewest(t *testing.T) {
	notifier, err := NewOverviewNotifier(NotifierOptions{Waiter: newQueueWaiter()})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe("job-1")
	defer unsub()

	notifier.broadcast("job-1", model.Overview{Status: model.StatusRunning})
	notifier.broadcast("job-1", model.Overview{Status: model.StatusCompleted})

	ov := <-ch
	assert.Equal(t, model.StatusCompleted, ov.Status)
	select {
	case <-ch:
		t.Fatal("older overview should have been replaced")
	default:
	}
}

func TestOverviewNotifier_UnsubscribeClosesChannel(t *testing.T) {
	waiter := newQueueWaiter()
	notifier, err := NewOverviewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)

	unsub, ch := notifier.Subscribe("job-1")
	<-waiter.calls
	unsub()
	unsub()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected channel to close after unsubscribe")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Empty(t, notifier.listeners)
}

func TestOverviewNotifier_StopAllClosesChannels(t *testing.T) {
	waiter := newQueueWaiter()
	waiter.err = errors.New("subscribe: connection reset")
	notifier, err := NewOverviewNotifier(NotifierOptions{Waiter: waiter, Backoff: 10 * time.Millisecond})
	require.NoError(t, err)

	unsubA, chA := notifier.Subscribe("job-a")
	unsubB, chB := notifier.Subscribe("job-b")
	for range 2 {
		select {
		case <-waiter.calls:
		case <-time.After(200 * time.Millisecond):
			t.Fatal("expected waiter to be invoked")
		}
	}

	notifier.StopAll()

	for _, ch := range []<-chan model.Overview{chA, chB} {
		_, ok := <-ch
		assert.False(t, ok, "channels should be closed after StopAll")
	}

	unsubA()
	unsubB()
}
