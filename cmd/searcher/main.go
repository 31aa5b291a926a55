// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Command searcher runs a quick hybrid query against an existing database
// and shows what each half of the search contributed.
//
//	searcher --db ./bookmind.db react hooks
package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/bookmind"
	"github.com/poiesic/bookmind/config"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/search"
)

// printMonitor reports intermediate results.
type printMonitor struct {
	w io.Writer
}

func (m printMonitor) Start(query string) {
	fmt.Fprintf(m.w, "query: %q\n", query)
}

func (m printMonitor) AfterVectorSearch(results []core.ScoredSlice) {
	fmt.Fprintf(m.w, "vector hits: %d\n", len(results))
}

func (m printMonitor) AfterKeywordSearch(results []core.ScoredSlice) {
	fmt.Fprintf(m.w, "keyword hits: %d\n", len(results))
}

func (m printMonitor) SearchFailed(side string, err error) {
	fmt.Fprintf(m.w, "%s search failed: %v\n", side, err)
}

func (m printMonitor) Finish(results []core.ScoredSlice) {
	fmt.Fprintf(m.w, "merged hits: %d\n", len(results))
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "searcher",
		Usage:     "Run a hybrid search and show each step",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log at debug level",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML, TOML or JSON configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.IntFlag{
				Name:    "top-k",
				Aliases: []string{"k"},
				Usage:   "Results per search",
				Value:   5,
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Restrict the search to one page",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("debug") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Action: func(c *cli.Context) error {
			return runSearch(c, out)
		},
	}
}

func runSearch(c *cli.Context, out io.Writer) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" && c.String("url") == "" {
		return fmt.Errorf("a query is required")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	config.Overrides{
		DatabasePath:   c.String("db"),
		EmbeddingHost:  c.String("embedding-host"),
		EmbeddingModel: c.String("embedding-model"),
	}.Apply(cfg)
	key, err := cfg.Search.KeyFunc()
	if err != nil {
		return err
	}

	db, err := bookmind.OpenDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.HybridWithMonitor(c.Context, search.HybridQuery{
		Text: query,
		TopK: c.Int("top-k"),
		URL:  c.String("url"),
		Key:  key,
	}, printMonitor{w: out})
	if err != nil {
		return err
	}

	for i, hit := range results {
		fmt.Fprintf(out, "%d: '%s' %s#%d [%0.3f]\n", i, hit.Slice.Title, hit.Slice.URL, hit.Slice.Position, hit.Score)
	}
	return nil
}
