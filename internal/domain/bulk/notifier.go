package bulk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/target/redis-bulk-actions/internal/domain/model"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("overview waiter is required")

// OverviewWaiter blocks until the next overview push for a job arrives.
type OverviewWaiter interface {
	WaitForOverview(ctx context.Context, jobID string) (model.Overview, error)
}

// releaser is implemented by waiters holding per-job resources.
type releaser interface {
	Release(jobID string)
}

// NotifierOptions configure the overview notifier.
type NotifierOptions struct {
	Waiter     OverviewWaiter
	WaitWindow time.Duration
	Backoff    time.Duration
}

// OverviewNotifier fans overview pushes for a job out to local subscribers.
//
// One listener goroutine runs per job id while it has subscribers. Each subscriber channel
// buffers only the newest overview.
type OverviewNotifier struct {
	waiter     OverviewWaiter
	waitWindow time.Duration
	backoff    time.Duration

	mu        sync.Mutex
	subs      map[string]map[chan model.Overview]struct{}
	listeners map[string]context.CancelFunc
}

// NewOverviewNotifier constructs an OverviewNotifier.
func NewOverviewNotifier(opts NotifierOptions) (*OverviewNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}

	waitWindow := opts.WaitWindow
	if waitWindow <= 0 {
		waitWindow = 30 * time.Second
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	return &OverviewNotifier{
		waiter:     opts.Waiter,
		waitWindow: waitWindow,
		backoff:    backoff,
		subs:       make(map[string]map[chan model.Overview]struct{}),
		listeners:  make(map[string]context.CancelFunc),
	}, nil
}

// Subscribe registers for overview pushes of jobID. The returned func unsubscribes and
// closes the channel.
func (n *OverviewNotifier) Subscribe(jobID string) (func(), <-chan model.Overview) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listeners[jobID]; !ok {
		ctx, cancel := context.WithCancel(context.Background())
		n.listeners[jobID] = cancel
		go n.listenLoop(ctx, jobID)
	}

	ch := make(chan model.Overview, 1)
	if n.subs[jobID] == nil {
		n.subs[jobID] = make(map[chan model.Overview]struct{})
	}
	n.subs[jobID][ch] = struct{}{}

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subscribers := n.subs[jobID]
		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		drainAndClose(ch)
		if len(subscribers) == 0 {
			n.stopListener(jobID)
			delete(n.subs, jobID)
		}
	}
	return unsub, ch
}

// StopAll stops every listener and closes every subscriber channel.
func (n *OverviewNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for jobID := range n.listeners {
		n.stopListener(jobID)
	}
	for jobID, subscribers := range n.subs {
		for ch := range subscribers {
			drainAndClose(ch)
		}
		delete(n.subs, jobID)
	}
}

func (n *OverviewNotifier) stopListener(jobID string) {
	cancel, ok := n.listeners[jobID]
	if !ok {
		return
	}
	cancel()
	delete(n.listeners, jobID)
	if r, ok := n.waiter.(releaser); ok {
		r.Release(jobID)
	}
}

func (n *OverviewNotifier) listenLoop(ctx context.Context, jobID string) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		ov, err := n.waiter.WaitForOverview(waitCtx, jobID)
		cancel()

		if err == nil {
			n.broadcast(jobID, ov)
			continue
		}
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			continue
		}

		timer := time.NewTimer(n.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// broadcast hands ov to every subscriber, replacing an unread older overview.
func (n *OverviewNotifier) broadcast(jobID string, ov model.Overview) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs[jobID] {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ov:
		default:
		}
	}
}

// drainAndClose removes any buffered overview before closing so receivers observe a
// closed channel immediately.
func drainAndClose(ch chan model.Overview) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}
