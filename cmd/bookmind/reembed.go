package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func reembedCommand() *cli.Command {
	return &cli.Command{
		Name:   "reembed",
		Usage:  "Re-embed all stored slices with the configured embedding model",
		Action: reembedAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of slices to embed per request",
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N slices",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum attempts per batch",
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
			},
		},
	}
}

func reembedAction(c *cli.Context) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	settings := cfg.ReembedSettings()
	settings.ReportInterval = c.Int("report-interval")
	if c.IsSet("batch-size") {
		settings.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("max-retries") {
		settings.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		settings.RetryDelay = c.Duration("retry-delay")
	}

	if settings.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if settings.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if settings.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reembedder, err := db.NewReembedder(settings, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Database.Path)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(os.Stderr)

	result, err := reembedder.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	if result.Slices > 0 {
		fmt.Fprintf(os.Stderr, "Re-embedded %d slices in %v\n", result.Slices, result.Elapsed.Round(time.Second))
	}
	return nil
}
