package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/redis-bulk-actions/config"
	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	"github.com/target/redis-bulk-actions/internal/domain/model"
	apperrors "github.com/target/redis-bulk-actions/internal/errors"
)

// DatabaseResolver resolves logical database ids to bulk clients.
type DatabaseResolver interface {
	Resolve(ctx context.Context, databaseID string) (bulk.Client, error)
	NodeInfo(ctx context.Context, databaseID string) ([]model.NodeInfo, error)
}

// RunnerFactoryBuilder returns the runner factory applying actionType with filter.
type RunnerFactoryBuilder func(actionType model.ActionType, filter model.Filter, maxKeys int) bulk.RunnerFactory

// OverviewChannelFactory returns the channel receiving the overview pushes of one job.
type OverviewChannelFactory func(jobID string) bulk.Channel

// startObserver is implemented by analytics sinks that also track running actions.
type startObserver interface {
	ActionStarted(ctx context.Context, overview model.Overview)
}

// BulkActionDeps groups the collaborators of BulkActionService.
type BulkActionDeps struct {
	Databases DatabaseResolver       // Required
	Runners   RunnerFactoryBuilder   // Required
	Overviews OverviewChannelFactory // Optional: overview pushes are skipped when nil
	Analytics bulk.Analytics         // Optional
}

// BulkActionServiceOptions groups dependencies for BulkActionService.
type BulkActionServiceOptions struct {
	Deps   BulkActionDeps
	Config config.BulkActionsConfig
	Logger *slog.Logger // Optional
}

type registeredJob struct {
	job       *bulk.Job
	createdAt time.Time
}

// BulkActionService is the registry of live bulk actions.
//
// It creates, prepares and starts jobs, resolves them by id for the HTTP layer and evicts
// finished jobs once they are old enough.
type BulkActionService struct {
	deps   BulkActionDeps
	cfg    config.BulkActionsConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	jobs     map[string]*registeredJob
	reserved map[string]struct{}
}

// NewBulkActionService constructs a BulkActionService.
func NewBulkActionService(opts BulkActionServiceOptions) (*BulkActionService, error) {
	if opts.Deps.Databases == nil {
		return nil, errors.New("DatabaseResolver is required")
	}
	if opts.Deps.Runners == nil {
		return nil, errors.New("RunnerFactoryBuilder is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := opts.Config
	cfg.Sanitize()

	return &BulkActionService{
		deps:     opts.Deps,
		cfg:      cfg,
		logger:   logger.With("component", "bulk_action_service"),
		now:      time.Now,
		jobs:     make(map[string]*registeredJob),
		reserved: make(map[string]struct{}),
	}, nil
}

func validationError(err error) error {
	var fieldErr *model.FieldError
	if errors.As(err, &fieldErr) {
		return apperrors.ValidationField(fieldErr.Field, fieldErr.Message)
	}
	return apperrors.Validation(err.Error())
}

// Create validates req, prepares a job on every primary node of the database and starts it.
// It returns the overview taken right after the start.
//
// A job whose preparation fails is never registered.
func (s *BulkActionService) Create(ctx context.Context, req model.CreateBulkActionRequest) (model.Overview, error) {
	req.DatabaseID = strings.TrimSpace(req.DatabaseID)
	if err := req.Validate(); err != nil {
		return model.Overview{}, validationError(err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := s.reserve(req.ID); err != nil {
		return model.Overview{}, err
	}
	defer s.unreserve(req.ID)

	client, err := s.deps.Databases.Resolve(ctx, req.DatabaseID)
	if err != nil {
		return model.Overview{}, fmt.Errorf("resolve database %s: %w", req.DatabaseID, err)
	}

	filter := req.Filter
	if filter.Count == 0 {
		filter.Count = s.cfg.ScanCount
	}
	filter = filter.Normalize()

	job, err := bulk.NewJob(bulk.JobOptions{
		ID:              req.ID,
		DatabaseID:      req.DatabaseID,
		Type:            req.Type,
		Filter:          filter,
		ReportEnabled:   req.GenerateReport,
		OverviewChannel: s.overviewChannel(req.ID),
		Analytics:       s.deps.Analytics,
		Logger:          s.logger,
		DebounceWindow:  s.cfg.Debounce,
	})
	if err != nil {
		return model.Overview{}, apperrors.Validation(err.Error())
	}

	factory := s.deps.Runners(req.Type, filter, s.cfg.MaxKeys)
	if err = job.Prepare(ctx, client, factory); err != nil {
		job.Close()
		s.logger.WarnContext(ctx, "bulk action preparation failed",
			"job_id", req.ID,
			"database_id", req.DatabaseID,
			"error", err,
		)
		mapped := apperrors.MapRedisError(err)
		if code := apperrors.GetCode(mapped); code == apperrors.ErrCodeTimeout || code == apperrors.ErrCodeCanceled {
			return model.Overview{}, mapped
		}
		return model.Overview{}, apperrors.Wrapf(err, apperrors.ErrCodeUnprocessable,
			"bulk action could not be prepared on database %s", req.DatabaseID)
	}

	ov, err := job.Start()
	if err != nil {
		job.Close()
		return model.Overview{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidState, "bulk action could not be started")
	}

	s.mu.Lock()
	s.jobs[req.ID] = &registeredJob{job: job, createdAt: s.now()}
	s.mu.Unlock()

	if obs, ok := s.deps.Analytics.(startObserver); ok {
		obs.ActionStarted(ctx, ov)
	}

	s.logger.InfoContext(ctx, "bulk action started",
		"job_id", req.ID,
		"database_id", req.DatabaseID,
		"action_type", req.Type,
		"match", filter.Match,
		"report", req.GenerateReport,
	)
	return ov, nil
}

func (s *BulkActionService) reserve(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, live := s.jobs[id]
	_, pending := s.reserved[id]
	if live || pending {
		return apperrors.Conflictf("bulk action %s already exists", id)
	}
	s.reserved[id] = struct{}{}
	return nil
}

func (s *BulkActionService) unreserve(id string) {
	s.mu.Lock()
	delete(s.reserved, id)
	s.mu.Unlock()
}

func (s *BulkActionService) overviewChannel(id string) bulk.Channel {
	if s.deps.Overviews == nil {
		return nil
	}
	return s.deps.Overviews(id)
}

// Get returns the live job with id.
func (s *BulkActionService) Get(id string) (*bulk.Job, error) {
	s.mu.RLock()
	entry, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFoundf("bulk action %s not found", id)
	}
	return entry.job, nil
}

// Overview returns the current overview of the job with id.
func (s *BulkActionService) Overview(id string) (model.Overview, error) {
	job, err := s.Get(id)
	if err != nil {
		return model.Overview{}, err
	}
	return job.Overview(), nil
}

// Abort stops the job with id. Aborting a finished job is rejected with InvalidState.
func (s *BulkActionService) Abort(ctx context.Context, id string) (model.Overview, error) {
	job, err := s.Get(id)
	if err != nil {
		return model.Overview{}, err
	}
	if status := job.Status(); status.IsTerminal() {
		return model.Overview{}, apperrors.InvalidStatef("bulk action %s is already %s", id, status)
	}

	ov := job.Abort()
	s.logger.InfoContext(ctx, "bulk action aborted", "job_id", id, "status", ov.Status)
	return ov, nil
}

// SubscribeToReport registers ch as a report subscriber of the job with id.
func (s *BulkActionService) SubscribeToReport(id string, ch bulk.Channel) (*bulk.Job, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	job.SubscribeToReport(ch)
	return job, nil
}

// UnsubscribeFromReport removes ch from the report subscribers of the job with id.
// Unknown ids are ignored since the job may already have been evicted.
func (s *BulkActionService) UnsubscribeFromReport(id string, ch bulk.Channel) {
	if job, err := s.Get(id); err == nil {
		job.UnsubscribeFromReport(ch)
	}
}

// List returns the overviews of every live job, newest first.
func (s *BulkActionService) List() []model.Overview {
	s.mu.RLock()
	entries := make([]*registeredJob, 0, len(s.jobs))
	for _, entry := range s.jobs {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *registeredJob) int {
		if c := b.createdAt.Compare(a.createdAt); c != 0 {
			return c
		}
		return strings.Compare(a.job.ID(), b.job.ID())
	})

	out := make([]model.Overview, len(entries))
	for i, entry := range entries {
		out[i] = entry.job.Overview()
	}
	return out
}

// EvictFinished removes jobs that reached a terminal status more than maxAge ago and
// returns how many were removed.
func (s *BulkActionService) EvictFinished(ctx context.Context, maxAge time.Duration) int64 {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	var evicted []*bulk.Job
	for id, entry := range s.jobs {
		if !entry.job.Status().IsTerminal() {
			continue
		}
		if ended := entry.job.EndedAt(); ended.IsZero() || ended.After(cutoff) {
			continue
		}
		delete(s.jobs, id)
		evicted = append(evicted, entry.job)
	}
	s.mu.Unlock()

	for _, job := range evicted {
		job.Close()
		s.logger.DebugContext(ctx, "evicted finished bulk action", "job_id", job.ID(), "status", job.Status())
	}
	return int64(len(evicted))
}

// NodeInfo lists the primary nodes of a database with their key counts.
func (s *BulkActionService) NodeInfo(ctx context.Context, databaseID string) ([]model.NodeInfo, error) {
	nodes, err := s.deps.Databases.NodeInfo(ctx, databaseID)
	if err != nil {
		return nil, fmt.Errorf("list nodes of %s: %w", databaseID, err)
	}
	return nodes, nil
}

// StopAll aborts every running job and waits for them to stop or ctx to expire.
func (s *BulkActionService) StopAll(ctx context.Context) error {
	s.mu.RLock()
	jobs := make([]*bulk.Job, 0, len(s.jobs))
	for _, entry := range s.jobs {
		jobs = append(jobs, entry.job)
	}
	s.mu.RUnlock()

	for _, job := range jobs {
		if !job.Status().IsTerminal() {
			job.Abort()
		}
	}
	for _, job := range jobs {
		select {
		case <-job.Done():
		case <-ctx.Done():
			return fmt.Errorf("wait for bulk actions to stop: %w", ctx.Err())
		}
	}
	return nil
}
