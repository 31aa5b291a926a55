package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/bookmind/core"
	"golang.org/x/sync/semaphore"
)

// pausePollInterval is how often a paused runner checks whether to resume.
const pausePollInterval = 100 * time.Millisecond

// Outcome is the result of processing one item.
type Outcome struct {
	Item     *core.QueueItem
	Err      error
	Duration time.Duration
}

// RunStats summarizes one runner invocation.
type RunStats struct {
	Dispatched int
	Succeeded  int
	Failed     int
	PeakActive int
	Cancelled  bool
}

// antsLogger routes ants pool messages to slog.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Runner drives one stage over a list of items with at most concurrency items
// in flight. Items are dispatched in order; completions arrive in any order.
type Runner struct {
	concurrency int
	pool        *ants.Pool
	logger      *slog.Logger

	active atomic.Int64
	peak   atomic.Int64
}

// NewRunner creates a runner backed by a worker pool of the given size.
// Call Release when the runner is no longer needed.
func NewRunner(concurrency int, logger *slog.Logger) (*Runner, error) {
	if concurrency < 1 {
		return nil, ErrInvalidConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(concurrency,
		ants.WithLogger(antsLogger{logger: logger}),
		ants.WithPanicHandler(func(v any) {
			logger.Error("stage worker panicked", "panic", v)
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Runner{
		concurrency: concurrency,
		pool:        pool,
		logger:      logger,
	}, nil
}

// Release stops the worker pool.
func (r *Runner) Release() {
	r.pool.Release()
}

// Active returns the number of items currently in flight.
func (r *Runner) Active() int {
	return int(r.active.Load())
}

// Run processes items with proc.
//
// Setup runs before the first dispatch and Teardown after the last in-flight
// item completes, even when the run is cancelled. While paused returns true no
// new item is dispatched; in-flight items keep running. Once ctx is cancelled
// nothing further is dispatched and Run returns after in-flight items finish.
//
// Every finished item has its status fields updated before onOutcome is
// called. onOutcome calls are serialized and may be nil.
func (r *Runner) Run(
	ctx context.Context,
	items []*core.QueueItem,
	proc Processor,
	paused func() bool,
	onOutcome func(Outcome),
) (RunStats, error) {
	var stats RunStats
	stage := proc.Stage()
	r.peak.Store(0)
	logger := r.logger.With("stage", stage.String())

	if err := proc.Setup(ctx); err != nil {
		return stats, fmt.Errorf("%s setup: %w", stage, err)
	}
	defer func() {
		// Teardown must run even when ctx is already cancelled
		if err := proc.Teardown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("stage teardown failed", "err", err)
		}
	}()

	if paused == nil {
		paused = func() bool { return false }
	}

	sem := semaphore.NewWeighted(int64(r.concurrency))
	results := make(chan Outcome, r.concurrency)
	aggregated := make(chan struct{})

	go func() {
		defer close(aggregated)
		for outcome := range results {
			applyOutcome(stage, outcome)
			if outcome.Err != nil {
				stats.Failed++
				logger.Debug("item failed", "url", outcome.Item.URL, "err", outcome.Err)
			} else {
				stats.Succeeded++
			}
			if onOutcome != nil {
				onOutcome(outcome)
			}
		}
	}()

	var wg sync.WaitGroup
	var dispatchErr error

dispatch:
	for _, item := range items {
		for {
			if !r.waitWhilePaused(ctx, paused) {
				break dispatch
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				break dispatch
			}
			if ctx.Err() != nil {
				sem.Release(1)
				break dispatch
			}
			// Pause may have been requested while waiting for a slot
			if paused() {
				sem.Release(1)
				continue
			}
			break
		}

		item.Stage = stage
		item.Status = core.ItemProcessing
		item.QueueStatus = stage.ActiveStatus()
		item.Touch()

		r.trackStart()
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			defer sem.Release(1)

			start := time.Now()
			err := safeProcess(ctx, proc, item)
			r.active.Add(-1)
			results <- Outcome{Item: item, Err: err, Duration: time.Since(start)}
		})
		if err != nil {
			r.active.Add(-1)
			wg.Done()
			sem.Release(1)
			item.Status = core.ItemPending
			item.QueueStatus = core.QueuePending
			dispatchErr = fmt.Errorf("%s dispatch: %w", stage, err)
			break
		}
		stats.Dispatched++
	}

	wg.Wait()
	close(results)
	<-aggregated

	stats.PeakActive = int(r.peak.Load())
	stats.Cancelled = ctx.Err() != nil
	logger.Debug("stage finished",
		"dispatched", stats.Dispatched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"cancelled", stats.Cancelled)

	return stats, dispatchErr
}

// waitWhilePaused blocks while paused reports true. It returns false if ctx
// is cancelled first.
func (r *Runner) waitWhilePaused(ctx context.Context, paused func() bool) bool {
	if !paused() {
		return ctx.Err() == nil
	}
	ticker := time.NewTicker(pausePollInterval)
	defer ticker.Stop()
	for paused() {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return ctx.Err() == nil
}

func (r *Runner) trackStart() {
	active := r.active.Add(1)
	for {
		peak := r.peak.Load()
		if active <= peak || r.peak.CompareAndSwap(peak, active) {
			return
		}
	}
}

// safeProcess converts a processor panic into an item failure.
func safeProcess(ctx context.Context, proc Processor, item *core.QueueItem) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%w: %v", ErrProcessorPanicked, v)
		}
	}()
	return proc.Process(ctx, item)
}

// applyOutcome moves item to its terminal status for stage.
func applyOutcome(stage core.Stage, outcome Outcome) {
	item := outcome.Item
	if outcome.Err != nil {
		item.Status = core.ItemFailed
		item.QueueStatus = core.QueueFailed
		item.Error = outcome.Err.Error()
	} else {
		item.Status = core.ItemCompleted
		item.QueueStatus = stage.DoneStatus()
		item.Error = ""
	}
	item.Touch()
}
