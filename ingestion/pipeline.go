package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/bookmind/ai"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/segment"
	"github.com/poiesic/bookmind/storage"
	"golang.org/x/time/rate"
)

const (
	// DefaultFetchConcurrency is the number of documents fetched at once.
	DefaultFetchConcurrency = 10
	// DefaultChunkConcurrency is the number of documents chunked and embedded at once.
	DefaultChunkConcurrency = 5
)

// RunConfig overrides per-run settings. Zero values keep the pipeline defaults.
type RunConfig struct {
	FetchConcurrency int
	ChunkConcurrency int
}

// Pipeline orchestrates the ingestion of documents: every item is fetched,
// then every successfully fetched item is chunked and embedded. Only one run
// is active at a time.
type Pipeline struct {
	pages  storage.PageRepository
	slices storage.SliceRepository
	queue  storage.QueueRepository

	fetchProc *fetchProcessor
	chunkProc *chunkEmbedProcessor

	fetchConcurrency int
	chunkConcurrency int

	// fetch and chunk settings collected by options
	httpClient   *http.Client
	userAgent    string
	fetchTimeout time.Duration
	maxBodyBytes int64
	limiter      *rate.Limiter
	splitterOpts []segment.Option

	sinks  []EventSink
	events *eventBus
	logger *slog.Logger

	paused atomic.Bool

	mu       sync.Mutex
	running  bool
	runID    string
	stage    core.Stage
	metrics  core.StageMetrics
	progress map[core.Stage]*core.StageProgress
	cancel   context.CancelFunc
	done     chan struct{}
	lastErr  error
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithFetchConcurrency sets how many documents are fetched at once.
// Default is DefaultFetchConcurrency.
func WithFetchConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return ErrInvalidConcurrency
		}
		p.fetchConcurrency = n
		return nil
	}
}

// WithChunkConcurrency sets how many documents are chunked and embedded at once.
// Default is DefaultChunkConcurrency.
func WithChunkConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return ErrInvalidConcurrency
		}
		p.chunkConcurrency = n
		return nil
	}
}

// WithQueueRepository persists a snapshot of every item after each stage transition.
func WithQueueRepository(queue storage.QueueRepository) Option {
	return func(p *Pipeline) error {
		p.queue = queue
		return nil
	}
}

// WithHTTPClient sets the client used by the fetch stage.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pipeline) error {
		p.httpClient = client
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with every fetch.
func WithUserAgent(userAgent string) Option {
	return func(p *Pipeline) error {
		if userAgent != "" {
			p.userAgent = userAgent
		}
		return nil
	}
}

// WithFetchTimeout bounds each document request.
// Default is DefaultFetchTimeout.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		if timeout <= 0 {
			return fmt.Errorf("fetch timeout must be positive, got %s", timeout)
		}
		p.fetchTimeout = timeout
		return nil
	}
}

// WithMaxBodyBytes caps how much of each response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(p *Pipeline) error {
		if n < MinContentLength {
			return fmt.Errorf("max body size must be at least %d bytes", MinContentLength)
		}
		p.maxBodyBytes = n
		return nil
	}
}

// WithRateLimit limits fetches to rps requests per second across all workers.
// Zero disables the limit.
func WithRateLimit(rps float64) Option {
	return func(p *Pipeline) error {
		if rps < 0 {
			return fmt.Errorf("rate limit cannot be negative")
		}
		if rps == 0 {
			p.limiter = nil
			return nil
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		return nil
	}
}

// WithChunking sets the chunk size and overlap used by the chunk stage.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		p.splitterOpts = []segment.Option{segment.WithMaxSize(size), segment.WithOverlap(overlap)}
		// validate now; the splitter itself is built once the logger is known
		_, err := segment.NewSplitter(p.splitterOpts...)
		return err
	}
}

// WithEventSink registers sinks for lifecycle events.
func WithEventSink(sinks ...EventSink) Option {
	return func(p *Pipeline) error {
		for _, sink := range sinks {
			if sink != nil {
				p.sinks = append(p.sinks, sink)
			}
		}
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	pages storage.PageRepository,
	slices storage.SliceRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if pages == nil {
		return nil, ErrPageRepositoryRequired
	}
	if slices == nil {
		return nil, ErrSliceRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		pages:            pages,
		slices:           slices,
		fetchConcurrency: DefaultFetchConcurrency,
		chunkConcurrency: DefaultChunkConcurrency,
		userAgent:        DefaultUserAgent,
		fetchTimeout:     DefaultFetchTimeout,
		maxBodyBytes:     DefaultMaxBodyBytes,
		progress:         make(map[core.Stage]*core.StageProgress),
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")

	var splitter *segment.Splitter
	if p.splitterOpts != nil {
		var err error
		splitter, err = segment.NewSplitter(append(p.splitterOpts, segment.WithLogger(p.logger))...)
		if err != nil {
			return nil, err
		}
	}
	chunkProc, err := newChunkEmbedProcessor(embedder, splitter, p.logger)
	if err != nil {
		return nil, err
	}
	p.chunkProc = chunkProc
	p.fetchProc = newFetchProcessor(p.httpClient, p.userAgent, p.fetchTimeout, p.maxBodyBytes, p.limiter, p.logger)
	p.events = newEventBus(p.sinks, p.logger)

	return p, nil
}

// Start begins a run over items in the background and returns immediately.
// If a run is already active Start logs a warning, changes nothing and
// returns ErrAlreadyRunning. Cancelling ctx stops the run like Stop.
func (p *Pipeline) Start(ctx context.Context, items []*core.QueueItem, cfg RunConfig) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.logger.Warn("pipeline already running, ignoring start", "run", p.currentRunID())
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.paused.Store(false)
	p.runID = uuid.NewString()
	p.stage = core.StageNone
	p.metrics = core.StageMetrics{StartTime: time.Now().UTC()}
	p.progress = make(map[core.Stage]*core.StageProgress)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.lastErr = nil
	runID := p.runID
	done := p.done
	p.emitRun(runID, core.EventStarted, "")
	p.mu.Unlock()

	fetchConcurrency := cfg.FetchConcurrency
	if fetchConcurrency <= 0 {
		fetchConcurrency = p.fetchConcurrency
	}
	chunkConcurrency := cfg.ChunkConcurrency
	if chunkConcurrency <= 0 {
		chunkConcurrency = p.chunkConcurrency
	}

	go func() {
		defer close(done)
		err := p.run(runCtx, runID, items, fetchConcurrency, chunkConcurrency)
		stopped := runCtx.Err() != nil
		cancel()

		p.mu.Lock()
		p.paused.Store(false)
		p.running = false
		p.stage = core.StageNone
		p.cancel = nil
		p.lastErr = err
		metrics := p.metrics
		p.mu.Unlock()

		p.finish(runID, err, stopped, metrics)
	}()
	return nil
}

// Run starts a run and waits for it to finish. It returns the run's error,
// which is nil for completed and stopped runs.
func (p *Pipeline) Run(ctx context.Context, items []*core.QueueItem, cfg RunConfig) error {
	if err := p.Start(ctx, items, cfg); err != nil {
		return err
	}
	return p.Wait()
}

// Wait blocks until the current run, if any, has finished and returns its error.
func (p *Pipeline) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Pause stops dispatching new items. In-flight items keep running.
func (p *Pipeline) Pause() {
	if !p.isRunning() || !p.paused.CompareAndSwap(false, true) {
		return
	}
	p.logger.Info("pipeline paused")
	p.emit(core.EventPaused, "")
}

// Resume continues dispatching after Pause.
func (p *Pipeline) Resume() {
	if !p.isRunning() || !p.paused.CompareAndSwap(true, false) {
		return
	}
	p.logger.Info("pipeline resumed")
	p.emit(core.EventResumed, "")
}

// Stop cancels the active run and waits for in-flight items to observe the
// cancellation. Calling Stop without an active run does nothing.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	running := p.running
	p.mu.Unlock()
	if !running || cancel == nil {
		return
	}

	p.logger.Info("stopping pipeline")
	cancel()
	<-done
}

// GetStatus returns a snapshot of the pipeline state. It never blocks on a run.
func (p *Pipeline) GetStatus() core.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return core.PipelineState{
		RunID:        p.runID,
		IsRunning:    p.running,
		IsPaused:     p.running && p.paused.Load(),
		CurrentStage: p.stage,
		Metrics:      p.metrics,
	}
}

// StageProgress returns the outcome counts of one stage of the current or last run.
func (p *Pipeline) StageProgress(stage core.Stage) core.StageProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if progress, ok := p.progress[stage]; ok {
		return *progress
	}
	return core.StageProgress{Stage: stage}
}

// Release stops any active run and delivers pending events.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.Stop()
	p.events.close()
}

func (p *Pipeline) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) currentRunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

func (p *Pipeline) emit(eventType core.EventType, message string) {
	p.emitRun(p.currentRunID(), eventType, message)
}

func (p *Pipeline) emitRun(runID string, eventType core.EventType, message string) {
	p.events.emit(core.Event{
		Type:    eventType,
		RunID:   runID,
		Message: message,
		Time:    time.Now().UTC(),
	})
}

// finish logs the end of a run and emits its terminal event.
func (p *Pipeline) finish(runID string, err error, stopped bool, m core.StageMetrics) {
	logger := p.logger.With("run", runID)
	switch {
	case err != nil:
		logger.Error("pipeline run failed", "err", err)
		p.emitRun(runID, core.EventError, err.Error())
	case stopped:
		logger.Info("pipeline run stopped",
			"processed", m.ItemsProcessed,
			"failed", m.ItemsFailed)
		p.emitRun(runID, core.EventStopped, "")
	default:
		logger.Info("pipeline run completed",
			"processed", m.ItemsProcessed,
			"failed", m.ItemsFailed,
			"indexed", m.ItemsIndexed,
			"skipped", m.ItemsSkipped,
			"elapsed", time.Since(m.StartTime).Round(time.Millisecond))
		p.emitRun(runID, core.EventCompleted, "")
	}
}

// run executes both stages. Failures outside of item processing end the run
// and are returned once.
func (p *Pipeline) run(ctx context.Context, runID string, items []*core.QueueItem, fetchConcurrency, chunkConcurrency int) (err error) {
	logger := p.logger.With("run", runID)
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("pipeline panicked: %v", v)
		}
	}()

	logger.Info("pipeline run started", "items", len(items))

	if p.queue != nil {
		if err := p.queue.ClearQueue(ctx); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
	}
	for _, item := range items {
		p.persistSeed(ctx, item)
	}

	if _, err := p.runStage(ctx, core.StageFetch, items, p.fetchProc, fetchConcurrency); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	// Items that failed to fetch are not forwarded
	var fetched []*core.QueueItem
	skipped := 0
	for _, item := range items {
		if item.Status == core.ItemCompleted {
			item.Stage = core.StageChunkEmbed
			item.Status = core.ItemPending
			fetched = append(fetched, item)
		} else {
			skipped++
		}
	}
	p.mu.Lock()
	p.metrics.ItemsSkipped += skipped
	p.mu.Unlock()

	_, err = p.runStage(ctx, core.StageChunkEmbed, fetched, p.chunkProc, chunkConcurrency)
	return err
}

func (p *Pipeline) runStage(ctx context.Context, stage core.Stage, items []*core.QueueItem, proc Processor, concurrency int) (RunStats, error) {
	p.mu.Lock()
	p.stage = stage
	p.progress[stage] = &core.StageProgress{Stage: stage, Total: len(items)}
	p.mu.Unlock()

	runner, err := NewRunner(concurrency, p.logger)
	if err != nil {
		return RunStats{}, err
	}
	defer runner.Release()

	stats, err := runner.Run(ctx, items, proc, p.paused.Load, func(outcome Outcome) {
		p.recordOutcome(ctx, stage, outcome)
	})

	p.mu.Lock()
	if stats.PeakActive > p.metrics.PeakActiveWorkers {
		p.metrics.PeakActiveWorkers = stats.PeakActive
	}
	p.mu.Unlock()
	return stats, err
}

// recordOutcome persists the result of one item and updates the metrics.
func (p *Pipeline) recordOutcome(ctx context.Context, stage core.Stage, outcome Outcome) {
	// Persist the final state of items that finished during cancellation too
	ctx = context.WithoutCancel(ctx)
	item := outcome.Item

	indexed := false
	if outcome.Err == nil {
		var err error
		indexed, err = p.persistSuccess(ctx, stage, item)
		if err != nil {
			p.logger.Error("failed to persist item", "url", item.URL, "stage", stage.String(), "err", err)
			outcome.Err = err
			applyOutcome(stage, outcome)
			item.Release()
		}
	}
	if outcome.Err != nil {
		item.RetryCount++
		p.persistFailure(ctx, item)
	}
	p.persistQueueRecord(ctx, item)

	p.mu.Lock()
	defer p.mu.Unlock()

	progress := p.progress[stage]
	if outcome.Err != nil {
		p.metrics.ItemsFailed++
		progress.Failed++
	} else {
		p.metrics.ItemsProcessed++
		progress.Processed++
	}
	if indexed {
		p.metrics.ItemsIndexed++
	}

	n := time.Duration(p.metrics.ItemsProcessed + p.metrics.ItemsFailed)
	p.metrics.AvgTimePerItem += (outcome.Duration - p.metrics.AvgTimePerItem) / n
}

// persistSuccess stores the result of a completed stage. It reports whether
// slices were written.
func (p *Pipeline) persistSuccess(ctx context.Context, stage core.Stage, item *core.QueueItem) (bool, error) {
	if stage != core.StageChunkEmbed {
		return false, nil
	}

	chunks, _ := item.Chunks()
	slices := make([]*core.Slice, len(chunks))
	for i, chunk := range chunks {
		slices[i] = core.NewSlice(item.URL, item.Title, chunk)
	}
	if err := p.slices.ReplaceSlices(ctx, item.URL, slices...); err != nil {
		return false, fmt.Errorf("save slices: %w", err)
	}

	page, err := p.loadPage(ctx, item)
	if err == nil {
		page.Processed = true
		page.IndexedAt = time.Now().UTC()
		page.Error = ""
		page.Attempts++
		if err = p.pages.SavePage(ctx, page); err != nil {
			err = fmt.Errorf("save page: %w", err)
		}
	}
	if err != nil {
		// a failed item must not stay searchable
		if _, delErr := p.slices.DeleteSlices(ctx, item.URL); delErr != nil {
			p.logger.Error("failed to remove slices of failed item", "url", item.URL, "err", delErr)
		}
		return false, err
	}
	return true, nil
}

func (p *Pipeline) persistFailure(ctx context.Context, item *core.QueueItem) {
	page, err := p.loadPage(ctx, item)
	if err != nil {
		p.logger.Warn("failed to load page", "url", item.URL, "err", err)
		return
	}
	page.Error = item.Error
	page.IndexedAt = time.Now().UTC()
	page.Attempts++
	if err := p.pages.SavePage(ctx, page); err != nil {
		p.logger.Warn("failed to record page failure", "url", item.URL, "err", err)
	}
}

func (p *Pipeline) persistSeed(ctx context.Context, item *core.QueueItem) {
	if _, err := p.pages.AddPages(ctx, &core.Page{URL: item.URL, Title: item.Title}); err != nil {
		p.logger.Warn("failed to store page", "url", item.URL, "err", err)
	}
	p.persistQueueRecord(ctx, item)
}

func (p *Pipeline) persistQueueRecord(ctx context.Context, item *core.QueueItem) {
	if p.queue == nil {
		return
	}
	if err := p.queue.SaveQueueRecord(ctx, item.Record()); err != nil {
		p.logger.Warn("failed to store queue record", "url", item.URL, "err", err)
	}
}

func (p *Pipeline) loadPage(ctx context.Context, item *core.QueueItem) (*core.Page, error) {
	page, err := p.pages.GetPage(ctx, item.URL)
	if errors.Is(err, storage.ErrNotFound) {
		return &core.Page{URL: item.URL, Title: item.Title}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}
	if page.Title == "" {
		page.Title = item.Title
	}
	return page, nil
}
