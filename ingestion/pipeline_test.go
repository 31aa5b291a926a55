package ingestion

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/bookmind/ai/mock"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/storage"
	"github.com/poiesic/bookmind/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventRecorder collects delivered events.
type eventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *eventRecorder) HandleEvent(event core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]core.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

func newDocumentServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<h1>Hello</h1><p>" + strings.Repeat("This page says hello to the world. ", 7) + "</p>"))
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>" + strings.Repeat("A long article keeps going. ", 120) + "</p>"))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type pipelineFixture struct {
	pipeline *Pipeline
	repos    *badger.Repositories
	embedder *mock.MockEmbedder
	events   *eventRecorder
}

func newPipelineFixture(t *testing.T, opts ...Option) *pipelineFixture {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	f := &pipelineFixture{
		repos:    repos,
		embedder: mock.NewMockEmbedder(),
		events:   &eventRecorder{},
	}
	opts = append([]Option{
		WithQueueRepository(repos.Queue),
		WithEventSink(f.events),
	}, opts...)

	f.pipeline, err = NewPipeline(repos.Pages, repos.Slices, f.embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(f.pipeline.Release)
	return f
}

func TestNewPipeline_RequiredDependencies(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	embedder := mock.NewMockEmbedder()

	_, err = NewPipeline(nil, repos.Slices, embedder)
	assert.ErrorIs(t, err, ErrPageRepositoryRequired)
	_, err = NewPipeline(repos.Pages, nil, embedder)
	assert.ErrorIs(t, err, ErrSliceRepositoryRequired)
	_, err = NewPipeline(repos.Pages, repos.Slices, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = NewPipeline(repos.Pages, repos.Slices, embedder, WithFetchConcurrency(0))
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
}

func TestPipeline_IndexesDocument(t *testing.T) {
	server := newDocumentServer(t)
	f := newPipelineFixture(t)
	ctx := context.Background()

	url := server.URL + "/hello"
	item := core.NewQueueItem(url, "Hello Page")
	require.NoError(t, f.pipeline.Run(ctx, []*core.QueueItem{item}, RunConfig{}))

	slices, err := f.repos.Slices.ListSlices(ctx, url, 0)
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Contains(t, slices[0].Text, "Hello")
	assert.Equal(t, url+"#0", slices[0].ID)
	assert.Equal(t, "Hello Page", slices[0].Title)
	assert.NotEmpty(t, slices[0].Embedding)

	page, err := f.repos.Pages.GetPage(ctx, url)
	require.NoError(t, err)
	assert.True(t, page.Processed)
	assert.False(t, page.IndexedAt.IsZero())
	assert.Empty(t, page.Error)

	assert.Equal(t, core.ItemCompleted, item.Status)
	assert.Equal(t, core.QueueChunked, item.QueueStatus)

	status := f.pipeline.GetStatus()
	assert.False(t, status.IsRunning)
	assert.Equal(t, 2, status.Metrics.ItemsProcessed, "one success per stage")
	assert.Equal(t, 1, status.Metrics.ItemsIndexed)
	assert.Zero(t, status.Metrics.ItemsFailed)

	record, err := f.repos.Queue.GetQueueRecord(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, core.QueueChunked, record.QueueStatus)

	f.pipeline.Release()
	assert.Equal(t, []core.EventType{core.EventStarted, core.EventCompleted}, f.events.types())
}

func TestPipeline_FailedFetch(t *testing.T) {
	server := newDocumentServer(t)
	f := newPipelineFixture(t)
	ctx := context.Background()

	missing := core.NewQueueItem(server.URL+"/missing", "")
	good := core.NewQueueItem(server.URL+"/hello", "")
	require.NoError(t, f.pipeline.Run(ctx, []*core.QueueItem{missing, good}, RunConfig{}))

	assert.Equal(t, core.ItemFailed, missing.Status)
	assert.Equal(t, "HTTP 404: Not Found", missing.Error)
	assert.Equal(t, core.StageFetch, missing.Stage)

	slices, err := f.repos.Slices.ListSlices(ctx, missing.URL, 0)
	require.NoError(t, err)
	assert.Empty(t, slices)

	page, err := f.repos.Pages.GetPage(ctx, missing.URL)
	require.NoError(t, err)
	assert.False(t, page.Processed)
	assert.Equal(t, "HTTP 404: Not Found", page.Error)
	assert.Equal(t, 1, page.Attempts)
	assert.False(t, page.IndexedAt.IsZero())

	status := f.pipeline.GetStatus()
	assert.Equal(t, 1, status.Metrics.ItemsFailed)
	assert.Equal(t, 1, status.Metrics.ItemsSkipped)
	assert.Equal(t, 1, status.Metrics.ItemsIndexed)

	fetch := f.pipeline.StageProgress(core.StageFetch)
	assert.Equal(t, core.StageProgress{Stage: core.StageFetch, Total: 2, Processed: 1, Failed: 1}, fetch)
	chunk := f.pipeline.StageProgress(core.StageChunkEmbed)
	assert.Equal(t, 1, chunk.Total)
	assert.Equal(t, 1, chunk.Processed)
}

func TestPipeline_ChunkFailureIsRecorded(t *testing.T) {
	server := newDocumentServer(t)
	f := newPipelineFixture(t)
	f.embedder.WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, assert.AnError
	})
	ctx := context.Background()

	item := core.NewQueueItem(server.URL+"/long", "")
	require.NoError(t, f.pipeline.Run(ctx, []*core.QueueItem{item}, RunConfig{}))

	assert.Equal(t, core.ItemFailed, item.Status)
	assert.Equal(t, core.StageChunkEmbed, item.Stage)
	assert.Contains(t, item.Error, "embedding failed")
	_, hasRaw := item.RawContent()
	assert.False(t, hasRaw)

	page, err := f.repos.Pages.GetPage(ctx, item.URL)
	require.NoError(t, err)
	assert.False(t, page.Processed)
	assert.Contains(t, page.Error, "embedding failed")

	count, err := f.repos.Slices.CountSlices(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPipeline_ReindexReplacesSlices(t *testing.T) {
	server := newDocumentServer(t)
	f := newPipelineFixture(t, WithChunking(200, 20))
	ctx := context.Background()
	url := server.URL + "/long"

	require.NoError(t, f.pipeline.Run(ctx, []*core.QueueItem{core.NewQueueItem(url, "")}, RunConfig{}))
	first, err := f.repos.Slices.CountSlices(ctx)
	require.NoError(t, err)
	require.Greater(t, first, 1)

	require.NoError(t, f.pipeline.Run(ctx, []*core.QueueItem{core.NewQueueItem(url, "")}, RunConfig{}))
	second, err := f.repos.Slices.CountSlices(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	page, err := f.repos.Pages.GetPage(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Attempts)
}

// faultySlices fails ReplaceSlices while fail is set.
type faultySlices struct {
	storage.SliceRepository
	fail bool
}

func (r *faultySlices) ReplaceSlices(ctx context.Context, url string, slices ...*core.Slice) error {
	if r.fail {
		return errors.New("disk full")
	}
	return r.SliceRepository.ReplaceSlices(ctx, url, slices...)
}

// faultyPages refuses to mark pages processed.
type faultyPages struct {
	storage.PageRepository
}

func (r *faultyPages) SavePage(ctx context.Context, page *core.Page) error {
	if page.Processed {
		return errors.New("disk full")
	}
	return r.PageRepository.SavePage(ctx, page)
}

func TestPipeline_PersistFailureLeavesNoPartialSlices(t *testing.T) {
	server := newDocumentServer(t)
	ctx := context.Background()
	url := server.URL + "/long"

	t.Run("slice write fails", func(t *testing.T) {
		repos, err := badger.NewMemoryRepositories()
		require.NoError(t, err)
		t.Cleanup(func() { repos.Close() })

		slices := &faultySlices{SliceRepository: repos.Slices}
		pipeline, err := NewPipeline(repos.Pages, slices, mock.NewMockEmbedder(), WithChunking(200, 20))
		require.NoError(t, err)
		t.Cleanup(pipeline.Release)

		require.NoError(t, pipeline.Run(ctx, []*core.QueueItem{core.NewQueueItem(url, "")}, RunConfig{}))
		before, err := repos.Slices.CountSlices(ctx)
		require.NoError(t, err)
		require.Greater(t, before, 1)

		slices.fail = true
		item := core.NewQueueItem(url, "")
		require.NoError(t, pipeline.Run(ctx, []*core.QueueItem{item}, RunConfig{}))

		assert.Equal(t, core.ItemFailed, item.Status)
		assert.Contains(t, item.Error, "disk full")
		after, err := repos.Slices.CountSlices(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after, "previous slices stay intact")
		assert.Equal(t, 0, pipeline.GetStatus().Metrics.ItemsIndexed)
	})

	t.Run("page write fails", func(t *testing.T) {
		repos, err := badger.NewMemoryRepositories()
		require.NoError(t, err)
		t.Cleanup(func() { repos.Close() })

		pipeline, err := NewPipeline(&faultyPages{PageRepository: repos.Pages}, repos.Slices, mock.NewMockEmbedder(), WithChunking(200, 20))
		require.NoError(t, err)
		t.Cleanup(pipeline.Release)

		item := core.NewQueueItem(url, "")
		require.NoError(t, pipeline.Run(ctx, []*core.QueueItem{item}, RunConfig{}))

		assert.Equal(t, core.ItemFailed, item.Status)
		assert.Contains(t, item.Error, "save page")
		count, err := repos.Slices.CountSlices(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		page, err := repos.Pages.GetPage(ctx, url)
		require.NoError(t, err)
		assert.False(t, page.Processed)
		assert.Contains(t, page.Error, "disk full")
	})
}

// lockedBuffer is a bytes.Buffer safe for concurrent log writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPipeline_SplitterUsesPipelineLogger(t *testing.T) {
	server := newDocumentServer(t)
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	var logs lockedBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})).With("app", "indexer")

	// chunking is configured before the logger on purpose
	pipeline, err := NewPipeline(repos.Pages, repos.Slices, mock.NewMockEmbedder(),
		WithChunking(200, 20),
		WithLogger(logger),
	)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	require.NoError(t, pipeline.Run(context.Background(), []*core.QueueItem{core.NewQueueItem(server.URL+"/long", "")}, RunConfig{}))

	var splitLine string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "component=splitter") {
			splitLine = line
			break
		}
	}
	require.NotEmpty(t, splitLine, "splitter should log through the pipeline logger")
	assert.Contains(t, splitLine, "app=indexer")
}

func TestPipeline_StartWhileRunning(t *testing.T) {
	server := newDocumentServer(t)
	f := newPipelineFixture(t)
	ctx := context.Background()

	items := []*core.QueueItem{core.NewQueueItem(server.URL+"/slow", "")}
	require.NoError(t, f.pipeline.Start(ctx, items, RunConfig{}))
	runID := f.pipeline.GetStatus().RunID

	err := f.pipeline.Start(ctx, []*core.QueueItem{core.NewQueueItem(server.URL+"/hello", "")}, RunConfig{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, runID, f.pipeline.GetStatus().RunID, "second start changes nothing")
	assert.True(t, f.pipeline.GetStatus().IsRunning)

	f.pipeline.Stop()
	assert.False(t, f.pipeline.GetStatus().IsRunning)
}

func TestPipeline_PauseResumeStop(t *testing.T) {
	server := newDocumentServer(t)
	f := newPipelineFixture(t)
	ctx := context.Background()

	// Pause and resume without a run are no-ops
	f.pipeline.Pause()
	f.pipeline.Resume()
	f.pipeline.Stop()

	items := []*core.QueueItem{
		core.NewQueueItem(server.URL+"/slow", ""),
		core.NewQueueItem(server.URL+"/hello", ""),
	}
	require.NoError(t, f.pipeline.Start(ctx, items, RunConfig{FetchConcurrency: 1}))

	f.pipeline.Pause()
	f.pipeline.Pause()
	status := f.pipeline.GetStatus()
	assert.True(t, status.IsRunning)
	assert.True(t, status.IsPaused)

	f.pipeline.Resume()
	assert.False(t, f.pipeline.GetStatus().IsPaused)

	f.pipeline.Stop()
	f.pipeline.Stop()
	status = f.pipeline.GetStatus()
	assert.False(t, status.IsRunning)
	assert.False(t, status.IsPaused)
	assert.Equal(t, core.StageNone, status.CurrentStage)

	// The second item was never dispatched
	assert.Equal(t, core.ItemPending, items[1].Status)

	f.pipeline.Release()
	assert.Equal(t, []core.EventType{
		core.EventStarted,
		core.EventPaused,
		core.EventResumed,
		core.EventStopped,
	}, f.events.types())
}

func TestPipeline_ContextCancellationStops(t *testing.T) {
	server := newDocumentServer(t)
	f := newPipelineFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.pipeline.Start(ctx, []*core.QueueItem{core.NewQueueItem(server.URL+"/slow", "")}, RunConfig{}))
	cancel()

	require.NoError(t, f.pipeline.Wait())
	assert.False(t, f.pipeline.GetStatus().IsRunning)
}

func TestPipeline_MetricsResetPerRun(t *testing.T) {
	server := newDocumentServer(t)
	f := newPipelineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pipeline.Run(ctx, []*core.QueueItem{core.NewQueueItem(server.URL+"/missing", "")}, RunConfig{}))
	first := f.pipeline.GetStatus()
	assert.Equal(t, 1, first.Metrics.ItemsFailed)

	require.NoError(t, f.pipeline.Run(ctx, []*core.QueueItem{core.NewQueueItem(server.URL+"/hello", "")}, RunConfig{}))
	second := f.pipeline.GetStatus()
	assert.Zero(t, second.Metrics.ItemsFailed)
	assert.Equal(t, 1, second.Metrics.ItemsIndexed)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Positive(t, second.Metrics.PeakActiveWorkers)
	assert.Positive(t, second.Metrics.AvgTimePerItem)
}

func TestEventBus_PanickingSinkDoesNotStopDelivery(t *testing.T) {
	recorder := &eventRecorder{}
	bus := newEventBus([]EventSink{
		EventFunc(func(core.Event) { panic("bad sink") }),
		recorder,
	}, testLogger())

	bus.emit(core.Event{Type: core.EventStarted})
	bus.emit(core.Event{Type: core.EventCompleted})
	bus.close()
	bus.emit(core.Event{Type: core.EventError})

	assert.Equal(t, []core.EventType{core.EventStarted, core.EventCompleted}, recorder.types())
}
