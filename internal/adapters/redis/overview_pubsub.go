package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	"github.com/target/redis-bulk-actions/internal/domain/model"
)

const publishTimeout = 2 * time.Second

// OverviewChannelName returns the pub/sub channel carrying overview pushes for jobID.
func OverviewChannelName(jobID string) string {
	return "bulk-actions:" + jobID + ":overview"
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OverviewPublisher publishes a job's overview pushes on Redis pub/sub.
type OverviewPublisher struct {
	client  redis.UniversalClient
	channel string
	timeout func() (context.Context, context.CancelFunc)
}

var _ bulk.Channel = (*OverviewPublisher)(nil)

// NewOverviewPublisher returns a publisher for jobID.
func NewOverviewPublisher(client redis.UniversalClient, jobID string) *OverviewPublisher {
	return &OverviewPublisher{
		client:  client,
		channel: OverviewChannelName(jobID),
		timeout: func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), publishTimeout)
		},
	}
}

// Emit publishes the event and its JSON payload.
func (p *OverviewPublisher) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	msg, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	ctx, cancel := p.timeout()
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

// OverviewWaiter receives overview pushes published by OverviewPublisher.
//
// It keeps one subscription per job id until Release is called.
type OverviewWaiter struct {
	client redis.UniversalClient

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

var _ bulk.OverviewWaiter = (*OverviewWaiter)(nil)

// NewOverviewWaiter constructs an OverviewWaiter.
func NewOverviewWaiter(client redis.UniversalClient) *OverviewWaiter {
	return &OverviewWaiter{
		client: client,
		subs:   make(map[string]*redis.PubSub),
	}
}

func (w *OverviewWaiter) subscription(ctx context.Context, jobID string) (*redis.PubSub, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ps, ok := w.subs[jobID]; ok {
		return ps, nil
	}
	ps := w.client.Subscribe(ctx, OverviewChannelName(jobID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", OverviewChannelName(jobID), err)
	}
	w.subs[jobID] = ps
	return ps, nil
}

// WaitForOverview blocks until the next overview of jobID is published or ctx is done.
// Events other than overview are skipped.
func (w *OverviewWaiter) WaitForOverview(ctx context.Context, jobID string) (model.Overview, error) {
	ps, err := w.subscription(ctx, jobID)
	if err != nil {
		return model.Overview{}, err
	}

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.Overview{}, ctxErr
			}
			return model.Overview{}, fmt.Errorf("receive overview: %w", err)
		}

		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			return model.Overview{}, fmt.Errorf("decode overview envelope: %w", err)
		}
		if env.Event != model.EventOverview {
			continue
		}
		var ov model.Overview
		if err := json.Unmarshal(env.Data, &ov); err != nil {
			return model.Overview{}, fmt.Errorf("decode overview: %w", err)
		}
		return ov, nil
	}
}

// Release drops the subscription of jobID.
func (w *OverviewWaiter) Release(jobID string) {
	w.mu.Lock()
	ps, ok := w.subs[jobID]
	delete(w.subs, jobID)
	w.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

// Close drops every subscription.
func (w *OverviewWaiter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for id, ps := range w.subs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(w.subs, id)
	}
	return errors.Join(errs...)
}
