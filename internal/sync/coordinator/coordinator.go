package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stacklok/pgsearch-sync/internal/extract"
	"github.com/stacklok/pgsearch-sync/internal/state"
	"github.com/stacklok/pgsearch-sync/internal/status"
	pkgsync "github.com/stacklok/pgsearch-sync/internal/sync"
)

// DefaultInterval is the idle time between two cycles
const DefaultInterval = time.Minute

// Coordinator manages background synchronization scheduling and execution
type Coordinator interface {
	// Start runs a cycle immediately and then one per interval.
	// Blocks until context is cancelled or a fatal error occurs.
	Start(ctx context.Context) error

	// RunOnce runs a single cycle. A cycle without updates is not an error.
	RunOnce(ctx context.Context) error

	// Stop cancels Start and waits for the running cycle to return
	Stop() error
}

// PendingCounter reports the size of the pending set
type PendingCounter func(ctx context.Context) (int64, error)

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager  pkgsync.Manager
	tracker  *status.Tracker
	interval time.Duration
	pending  PendingCounter
	now      func() time.Time

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithInterval sets the idle time between two cycles
func WithInterval(interval time.Duration) Option {
	return func(c *defaultCoordinator) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithTracker reports cycle outcomes to tracker
func WithTracker(tracker *status.Tracker) Option {
	return func(c *defaultCoordinator) {
		c.tracker = tracker
	}
}

// WithPendingCounter refreshes the tracked pending set size after every cycle
func WithPendingCounter(counter PendingCounter) Option {
	return func(c *defaultCoordinator) {
		c.pending = counter
	}
}

// WithClock replaces time.Now for status timestamps
func WithClock(now func() time.Time) Option {
	return func(c *defaultCoordinator) {
		c.now = now
	}
}

// New creates a new coordinator with injected dependencies
func New(manager pkgsync.Manager, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		manager:  manager,
		tracker:  status.NewTracker(),
		interval: DefaultInterval,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins background sync coordination
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting background sync coordinator", "interval", c.interval)

	coordCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.mu.Lock()
	c.cancelFunc = cancel
	c.done = done
	c.mu.Unlock()
	defer func() {
		cancel()
		close(done)
		slog.Info("Background sync coordinator shutting down")
	}()

	if err := c.runCycle(coordCtx); err != nil {
		return err
	}

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if err := c.runCycle(coordCtx); err != nil {
				return err
			}
			timer.Reset(c.interval)
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// RunOnce runs a single cycle
func (c *defaultCoordinator) RunOnce(ctx context.Context) error {
	started := c.now()
	c.tracker.MarkSyncing(started)

	result, err := c.manager.RunCycle(ctx)
	c.report(started, result, err)
	c.refreshPending(ctx)

	if errors.Is(err, extract.ErrNoUpdatesFound) {
		return nil
	}
	return err
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancelFunc, c.done
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		<-done
	}
	return nil
}

// runCycle runs one cycle and returns an error only when it is fatal
func (c *defaultCoordinator) runCycle(ctx context.Context) error {
	err := c.RunOnce(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrStore):
		slog.Error("Sync state store failed, stopping", "error", err)
		return fmt.Errorf("sync state store failure: %w", err)
	case ctx.Err() != nil:
		slog.Info("Sync cycle interrupted", "error", err)
		return nil
	default:
		slog.Error("Sync cycle failed, retrying on next interval",
			"error", err,
			"retry_in", c.interval)
		return nil
	}
}

func (c *defaultCoordinator) report(started time.Time, result *pkgsync.Result, err error) {
	switch {
	case err == nil:
		c.tracker.MarkComplete(c.now(), result.Watermark, summarize(result))
	case errors.Is(err, extract.ErrNoUpdatesFound):
		c.tracker.MarkNoUpdates(started)
	default:
		c.tracker.MarkFailed(err)
	}
}

func (c *defaultCoordinator) refreshPending(ctx context.Context) {
	if c.pending == nil {
		return
	}
	n, err := c.pending(ctx)
	if err != nil {
		slog.Warn("Failed to read pending set size", "error", err)
		return
	}
	c.tracker.SetPending(n)
}

func summarize(result *pkgsync.Result) status.CycleSummary {
	return status.CycleSummary{
		ChangedRows:         result.TotalChangedRows(),
		ReferencedDocuments: result.ReferencedDocuments,
		AffectedIDs:         result.AffectedIDs,
		Pages:               result.Pages,
		MoviesLoaded:        result.MoviesLoaded,
		Duration:            result.Duration.String(),
	}
}
