package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/ingestion"
	"github.com/poiesic/bookmind/source"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Fetch, chunk and embed the pages of a bookmark export or URL list",
		ArgsUsage: "<bookmarks.html|urls.txt>",
		Action:    indexAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "fetch-concurrency",
				Usage: "Number of pages fetched at once",
			},
			&cli.IntFlag{
				Name:  "chunk-concurrency",
				Usage: "Number of pages chunked and embedded at once",
			},
			&cli.Float64Flag{
				Name:  "rate-limit",
				Usage: "Maximum page requests per second (0 disables)",
			},
			&cli.DurationFlag{
				Name:  "status-interval",
				Usage: "How often to report progress",
			},
			&cli.BoolFlag{
				Name:  "retry-failed",
				Usage: "Also retry pages that failed within the last 24 hours",
			},
		},
	}
}

func indexAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one bookmark file, got %d arguments", c.NArg())
	}

	bookmarks, err := source.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read bookmarks: %w", err)
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.IsSet("fetch-concurrency") {
		cfg.Pipeline.FetchConcurrency = c.Int("fetch-concurrency")
	}
	if c.IsSet("chunk-concurrency") {
		cfg.Pipeline.ChunkConcurrency = c.Int("chunk-concurrency")
	}
	if c.IsSet("rate-limit") {
		cfg.Pipeline.RateLimit = c.Float64("rate-limit")
	}
	if c.IsSet("status-interval") {
		cfg.Pipeline.StatusInterval = c.Duration("status-interval")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var enumOpts []source.Option
	if c.Bool("retry-failed") {
		enumOpts = append(enumOpts, source.WithRetryAfter(0))
	}
	enumerator, err := db.NewEnumerator(enumOpts...)
	if err != nil {
		return err
	}

	ctx := c.Context
	seeds, err := enumerator.Seeds(ctx, bookmarks)
	if err != nil {
		return fmt.Errorf("failed to enumerate bookmarks: %w", err)
	}
	if len(seeds) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to index")
		return nil
	}

	opts := append(cfg.PipelineOptions(), ingestion.WithEventSink(ingestion.EventFunc(logEvent)))
	pipeline, err := db.NewPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Database.Path)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintf(os.Stderr, "Indexing %d of %d bookmarks\n\n", len(seeds), len(bookmarks))

	if err := pipeline.Start(ctx, seeds, ingestion.RunConfig{}); err != nil {
		return err
	}
	superviseRun(ctx, pipeline, cfg.Pipeline.StatusInterval)

	if err := pipeline.Wait(); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	printSummary(pipeline)
	return nil
}

// runControl is the part of the pipeline the supervisor drives.
type runControl interface {
	Pause()
	Resume()
	Stop()
	Wait() error
	GetStatus() core.PipelineState
	StageProgress(stage core.Stage) core.StageProgress
}

// superviseRun blocks until the run ends. Stop signals stop the run, pause
// signals toggle pause and progress is logged every interval.
func superviseRun(ctx context.Context, run runControl, interval time.Duration) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, stopSignals...)
	defer signal.Stop(stop)

	toggle := make(chan os.Signal, 1)
	if len(pauseSignals) > 0 {
		signal.Notify(toggle, pauseSignals...)
		defer signal.Stop(toggle)
	}

	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		_ = run.Wait()
		close(done)
	}()

	cancelled := ctx.Done()
	for {
		select {
		case <-done:
			return
		case <-cancelled:
			cancelled = nil
			run.Stop()
		case sig := <-stop:
			slog.Warn("stopping run", "signal", sig)
			run.Stop()
		case <-toggle:
			if run.GetStatus().IsPaused {
				run.Resume()
			} else {
				run.Pause()
			}
		case <-ticker.C:
			reportStatus(run)
		}
	}
}

func reportStatus(run runControl) {
	state := run.GetStatus()
	progress := run.StageProgress(state.CurrentStage)
	slog.Info("progress",
		"stage", state.CurrentStage,
		"done", progress.Processed+progress.Failed,
		"total", progress.Total,
		"failed", progress.Failed,
		"indexed", state.Metrics.ItemsIndexed,
		"paused", state.IsPaused)
}

func logEvent(event core.Event) {
	switch event.Type {
	case core.EventError:
		slog.Error("pipeline error", "run", event.RunID, "message", event.Message)
	default:
		slog.Info("pipeline "+string(event.Type), "run", event.RunID)
	}
}

func printSummary(run runControl) {
	m := run.GetStatus().Metrics
	fmt.Fprintf(os.Stderr, "\nIndexed %d pages, %d failed, %d skipped (avg %v per item, peak %d workers)\n",
		m.ItemsIndexed, m.ItemsFailed, m.ItemsSkipped,
		m.AvgTimePerItem.Round(time.Millisecond), m.PeakActiveWorkers)
}
