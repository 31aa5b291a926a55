package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/reembed"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show stored pages, slices and the state of the last run",
		Action: statusAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "failed",
				Usage: "List pages whose last attempt failed",
			},
			&cli.BoolFlag{
				Name:  "check-model",
				Usage: "Embed a sample text and compare dimensions with stored slices",
			},
		},
	}
}

func statusAction(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := c.Context
	pages, err := db.PageRepository().ListPages(ctx)
	if err != nil {
		return err
	}
	slices, err := db.SliceRepository().CountSlices(ctx)
	if err != nil {
		return err
	}
	records, err := db.QueueRepository().ListQueueRecords(ctx)
	if err != nil {
		return err
	}

	writeStatus(os.Stdout, pages, slices, records, c.Bool("failed"))

	if c.Bool("check-model") {
		dims, mismatch, err := reembed.CheckDimensions(ctx, db.SliceRepository(), db.Embedder(), 100)
		if err != nil {
			return fmt.Errorf("model check failed: %w", err)
		}
		fmt.Fprintf(os.Stdout, "\nModel dimensions: %d\n", dims)
		if mismatch {
			fmt.Fprintln(os.Stdout, "Stored slices use different dimensions; run `bookmind reembed`")
		}
	}
	return nil
}

func writeStatus(w io.Writer, pages []*core.Page, slices int, records []*core.QueueRecord, listFailed bool) {
	var processed, failed int
	for _, p := range pages {
		switch {
		case p.Processed:
			processed++
		case p.Failed():
			failed++
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Pages\t%d\n", len(pages))
	fmt.Fprintf(tw, "  processed\t%d\n", processed)
	fmt.Fprintf(tw, "  failed\t%d\n", failed)
	fmt.Fprintf(tw, "  pending\t%d\n", len(pages)-processed-failed)
	fmt.Fprintf(tw, "Slices\t%d\n", slices)

	if len(records) > 0 {
		byStatus := make(map[core.QueueStatus]int)
		var last time.Time
		for _, r := range records {
			byStatus[r.QueueStatus]++
			if r.UpdatedAt.After(last) {
				last = r.UpdatedAt
			}
		}
		fmt.Fprintf(tw, "Last run\t%d items, updated %s\n", len(records), last.Local().Format(time.DateTime))
		for status := core.QueuePending; status <= core.QueueSkipped; status++ {
			if n := byStatus[status]; n > 0 {
				fmt.Fprintf(tw, "  %s\t%d\n", status, n)
			}
		}
	}
	tw.Flush()

	if listFailed && failed > 0 {
		fmt.Fprintln(w, "\nFailed pages:")
		for _, p := range pages {
			if p.Failed() && !p.Processed {
				fmt.Fprintf(w, "  %s (%d attempts, last %s): %s\n",
					p.URL, p.Attempts, p.IndexedAt.Local().Format(time.DateTime), p.Error)
			}
		}
	}
}
