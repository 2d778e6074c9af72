package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/target/redis-bulk-actions/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidState is returned when an operation is not legal in the job's current status.
	ErrInvalidState = errors.New("bulk action is in an invalid state for this operation")
	// ErrNoNodes is returned when a database reports no primary nodes.
	ErrNoNodes = errors.New("database has no primary nodes")
)

// JobOptions configures a Job.
type JobOptions struct {
	ID            string           // Required
	DatabaseID    string           // Required
	Type          model.ActionType // Required
	Filter        model.Filter
	ReportEnabled bool

	OverviewChannel Channel      // Optional: receives debounced overview pushes
	Analytics       Analytics    // Optional: receives the terminal outcome
	Logger          *slog.Logger // Optional
	DebounceWindow  time.Duration
	Clock           func() time.Time
}

// Job orchestrates one bulk action across every primary node of a database.
//
// Status only moves forward through allowedTransitions and never leaves a terminal
// status. Runners are created once during Prepare and never replaced.
type Job struct {
	id            string
	databaseID    string
	actionType    model.ActionType
	filter        model.Filter
	reportEnabled bool

	overviewCh Channel
	analytics  Analytics
	logger     *slog.Logger
	now        func() time.Time

	mu            sync.RWMutex
	status        model.Status
	startedAt     time.Time
	endedAt       time.Time
	lastErr       error
	runners       []Runner
	analyticsSent bool

	subscribers *subscriberSet
	emitted     atomic.Int64
	debouncer   *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Reporter = (*Job)(nil)

// NewJob constructs a job in the initialized status.
func NewJob(opts JobOptions) (*Job, error) {
	if opts.ID == "" {
		return nil, errors.New("bulk action id is required")
	}
	if opts.DatabaseID == "" {
		return nil, errors.New("database id is required")
	}
	if !opts.Type.Valid() {
		return nil, fmt.Errorf("invalid bulk action type %q", opts.Type)
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		id:            opts.ID,
		databaseID:    opts.DatabaseID,
		actionType:    opts.Type,
		filter:        opts.Filter.Normalize(),
		reportEnabled: opts.ReportEnabled,
		overviewCh:    opts.OverviewChannel,
		analytics:     opts.Analytics,
		logger: logger.With(
			"component", "bulk_action",
			"job_id", opts.ID,
			"database_id", opts.DatabaseID,
		),
		now:         clock,
		status:      model.StatusInitialized,
		startedAt:   clock(),
		subscribers: newSubscriberSet(),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	j.debouncer = NewDebouncer(opts.DebounceWindow, j.sendOverview)
	return j, nil
}

// ID returns the job id.
func (j *Job) ID() string { return j.id }

// DatabaseID returns the target database id.
func (j *Job) DatabaseID() string { return j.databaseID }

// Type returns the action applied by this job.
func (j *Job) Type() model.ActionType { return j.actionType }

// Filter returns the key filter.
func (j *Job) Filter() model.Filter { return j.filter }

// Status returns the current status.
func (j *Job) Status() model.Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Err returns the error captured when the job failed, if any.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastErr
}

// EndedAt returns when the job entered a terminal status, or the zero time.
func (j *Job) EndedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.endedAt
}

// Done is closed once the background run has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Prepare discovers the primary nodes of the database and prepares one runner per node.
//
// Legal only from initialized. Every runner is prepared concurrently; if any fails the
// call fails, no runner is kept and the job stays in preparing.
func (j *Job) Prepare(ctx context.Context, client Client, factory RunnerFactory) error {
	if _, ok := j.applyStatus(model.StatusPreparing, expectStatus(model.StatusInitialized), nil); !ok {
		return fmt.Errorf("prepare bulk action %s in status %s: %w", j.id, j.Status(), ErrInvalidState)
	}

	nodes, err := client.PrimaryNodes(ctx)
	if err != nil {
		return fmt.Errorf("list primary nodes: %w", err)
	}
	if len(nodes) == 0 {
		return ErrNoNodes
	}

	runners := make([]Runner, 0, len(nodes))
	for _, node := range nodes {
		runner, rerr := factory.NewRunner(j, node)
		if rerr != nil {
			return fmt.Errorf("create runner for node %s: %w", node.Addr(), rerr)
		}
		runners = append(runners, runner)
	}

	group, gctx := errgroup.WithContext(ctx)
	for i, runner := range runners {
		group.Go(func() error {
			if perr := runner.PrepareToStart(gctx); perr != nil {
				return fmt.Errorf("prepare node %s: %w", nodes[i].Addr(), perr)
			}
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return err
	}

	j.mu.Lock()
	j.runners = runners
	j.mu.Unlock()

	if _, ok := j.applyStatus(model.StatusReady, expectStatus(model.StatusPreparing), nil); !ok {
		return fmt.Errorf("finish preparing bulk action %s in status %s: %w", j.id, j.Status(), ErrInvalidState)
	}

	j.logger.DebugContext(ctx, "bulk action prepared", "nodes", len(runners))
	return nil
}

// Start dispatches every runner in the background and returns the current overview
// without waiting for them. Legal only from ready.
func (j *Job) Start() (model.Overview, error) {
	if _, ok := j.applyStatus(model.StatusRunning, expectStatus(model.StatusReady), nil); !ok {
		return model.Overview{}, fmt.Errorf("start bulk action %s in status %s: %w", j.id, j.Status(), ErrInvalidState)
	}

	go j.run()
	return j.overview(false), nil
}

// run awaits every runner. One failing runner fails the whole job.
func (j *Job) run() {
	defer close(j.done)

	j.EmitReportReady()

	j.mu.RLock()
	runners := j.runners
	j.mu.RUnlock()

	group, gctx := errgroup.WithContext(j.ctx)
	for _, runner := range runners {
		group.Go(func() error { return runner.Run(gctx) })
	}

	if err := group.Wait(); err != nil {
		if j.Status() == model.StatusAborted {
			j.logger.Debug("runner stopped after abort", "error", err)
			return
		}
		j.logger.Error("bulk action failed", "error", err)
		j.fail(err)
		return
	}
	j.SetStatus(model.StatusCompleted)
}

// Abort moves the job to aborted and stops its runners at their next iteration.
func (j *Job) Abort() model.Overview {
	j.SetStatus(model.StatusAborted)
	j.cancel()
	return j.Overview()
}

// Close releases the job's background resources. A terminal job whose outcome has not
// been reported yet is flushed first.
func (j *Job) Close() {
	j.cancel()
	j.mu.RLock()
	unreported := j.status.IsTerminal() && !j.analyticsSent
	j.mu.RUnlock()
	if unreported {
		j.debouncer.Flush()
	}
	j.debouncer.Stop()
}

// SetStatus is the single mutation point for the job status.
//
// Once the job is completed, failed or aborted every further call is silently ignored.
func (j *Job) SetStatus(status model.Status) {
	j.applyStatus(status, nil, nil)
}

func (j *Job) fail(err error) {
	j.applyStatus(model.StatusFailed, nil, err)
}

func expectStatus(want model.Status) func(model.Status) bool {
	return func(cur model.Status) bool { return cur == want }
}

// applyStatus moves the job to next when the current status is not terminal, passes the
// optional guard and the transition table allows it. It returns the previous status and
// whether the change was applied.
func (j *Job) applyStatus(next model.Status, guard func(model.Status) bool, cause error) (model.Status, bool) {
	j.mu.Lock()
	cur := j.status
	if cur.IsTerminal() || (guard != nil && !guard(cur)) {
		j.mu.Unlock()
		return cur, false
	}
	if !canTransition(cur, next) {
		j.mu.Unlock()
		j.logger.Debug("rejected bulk action status change", "from", cur, "to", next)
		return cur, false
	}

	j.status = next
	if next == model.StatusFailed && j.lastErr == nil {
		j.lastErr = cause
	}
	terminal := next.IsTerminal()
	if terminal && j.endedAt.IsZero() {
		j.endedAt = j.now()
	}
	j.mu.Unlock()

	j.logger.Debug("bulk action status changed", "from", cur, "to", next)

	if terminal {
		j.EmitReportComplete()
	}
	j.debouncer.Trigger()
	return cur, true
}

// ChangeState schedules a debounced overview push.
func (j *Job) ChangeState() {
	j.debouncer.Trigger()
}

// Overview merges every runner's progress and summary into a snapshot.
//
// Each runner summary drains its retained errors on read, so an error appears in the
// first overview computed after it was recorded and not in later ones.
func (j *Job) Overview() model.Overview {
	return j.overview(true)
}

// overview merges runner state. With drain unset the runners keep their retained errors
// for the next caller of Overview.
func (j *Job) overview(drain bool) model.Overview {
	j.mu.RLock()
	runners := j.runners
	status := j.status
	started := j.startedAt
	ended := j.endedAt
	lastErr := j.lastErr
	j.mu.RUnlock()

	progress := make([]model.Progress, len(runners))
	summaries := make([]model.SummaryOverview, len(runners))
	for i, runner := range runners {
		progress[i] = runner.Progress()
		if drain {
			summaries[i] = runner.Summary().Overview()
		} else {
			summaries[i] = runner.Summary().Peek()
		}
	}

	end := ended
	if end.IsZero() {
		end = j.now()
	}

	ov := model.Overview{
		ID:         j.id,
		DatabaseID: j.databaseID,
		Type:       j.actionType,
		Status:     status,
		Filter:     j.filter,
		Progress:   mergeProgress(progress),
		Summary:    mergeSummaries(summaries),
		Duration:   end.Sub(started).Milliseconds(),
	}
	if lastErr != nil {
		ov.Error = lastErr.Error()
	}
	return ov
}

// sendOverview pushes the current overview and, once terminal, reports the outcome to
// analytics exactly once.
//
// Without an overview channel nothing consumes the push, so retained errors are left for
// the next Overview call and only a terminal status is read, for analytics.
func (j *Job) sendOverview() {
	if j.overviewCh == nil {
		if j.Status().IsTerminal() {
			j.reportOutcome(j.overview(false))
		}
		return
	}

	ov := j.Overview()
	if err := j.overviewCh.Emit(model.EventOverview, ov); err != nil {
		j.logger.Warn("overview push failed", "error", err)
	}
	if ov.Status.IsTerminal() {
		j.reportOutcome(ov)
	}
}

func (j *Job) reportOutcome(ov model.Overview) {
	j.mu.Lock()
	if j.analyticsSent {
		j.mu.Unlock()
		return
	}
	j.analyticsSent = true
	lastErr := j.lastErr
	j.mu.Unlock()

	if j.analytics == nil {
		return
	}

	ctx := context.Background()
	switch ov.Status {
	case model.StatusCompleted:
		j.analytics.ActionSucceeded(ctx, ov)
	case model.StatusFailed:
		j.analytics.ActionFailed(ctx, ov, lastErr)
	case model.StatusAborted:
		j.analytics.ActionAborted(ctx, ov)
	}
}

// SubscribeToReport adds a channel to the report subscribers.
func (j *Job) SubscribeToReport(ch Channel) {
	j.subscribers.add(ch)
}

// UnsubscribeFromReport removes a channel from the report subscribers.
func (j *Job) UnsubscribeFromReport(ch Channel) {
	j.subscribers.remove(ch)
}

// EmittedKeys returns the exact number of keys streamed to report subscribers.
func (j *Job) EmittedKeys() int64 {
	return j.emitted.Load()
}

// EmitDeletedKeys streams a batch of affected keys to every report subscriber.
// It is a no-op for an empty batch, when reporting is disabled or nobody listens.
func (j *Job) EmitDeletedKeys(keys []string) {
	if len(keys) == 0 || !j.reportEnabled || j.subscribers.len() == 0 {
		return
	}
	total := j.emitted.Add(int64(len(keys)))
	j.subscribers.broadcast(j.logger, model.EventReportBatch, model.ReportBatch{
		ID:    j.id,
		Keys:  keys,
		Count: len(keys),
		Total: total,
	})
}

// EmitReportReady tells subscribers the job is about to stream affected keys.
func (j *Job) EmitReportReady() {
	if j.subscribers.len() == 0 {
		return
	}
	j.subscribers.broadcast(j.logger, model.EventReportReady, model.ReportReady{
		ID:         j.id,
		DatabaseID: j.databaseID,
		Type:       j.actionType,
		Filter:     j.filter,
	})
}

// EmitReportComplete sends the final overview to every subscriber.
func (j *Job) EmitReportComplete() {
	if j.subscribers.len() == 0 {
		return
	}
	j.subscribers.broadcast(j.logger, model.EventReportComplete, model.ReportComplete{
		Overview: j.overview(false),
	})
}
