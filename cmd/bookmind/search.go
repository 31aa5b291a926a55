package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/search"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search indexed pages",
		ArgsUsage: "<query>",
		Action:    searchAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Search mode (hybrid, keyword, vector)",
				Value: "hybrid",
			},
			&cli.IntFlag{
				Name:    "top-k",
				Aliases: []string{"k"},
				Usage:   "Number of results per search",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Restrict the search to one page",
			},
			&cli.StringFlag{
				Name:  "dedup",
				Usage: "Hybrid deduplication key (url, title, none)",
			},
		},
	}
}

func searchAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	mode := strings.ToLower(c.String("mode"))
	if query == "" && !(mode != "vector" && c.IsSet("url")) {
		return fmt.Errorf("a query is required")
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	topK := cfg.Search.TopK
	if c.IsSet("top-k") {
		topK = c.Int("top-k")
	}
	if c.IsSet("dedup") {
		cfg.Search.Dedup = c.String("dedup")
	}
	key, err := cfg.Search.KeyFunc()
	if err != nil {
		return err
	}

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	var results []core.ScoredSlice
	switch mode {
	case "keyword":
		results, err = searcher.Keyword(c.Context, search.KeywordQuery{Text: query, TopK: topK, URL: c.String("url")})
	case "vector":
		results, err = searcher.Vector(c.Context, search.VectorQuery{Text: query, TopK: topK, URL: c.String("url")})
	case "hybrid":
		results, err = searcher.Hybrid(c.Context, search.HybridQuery{Text: query, TopK: topK, URL: c.String("url"), Key: key})
	default:
		return fmt.Errorf("unknown search mode %q", mode)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	printResults(os.Stdout, results)
	return nil
}

func printResults(w io.Writer, results []core.ScoredSlice) {
	fmt.Fprintf(w, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(w, "%d: %s [%0.3f]\n   %s #%d\n   %s\n",
			i+1, hit.Slice.Title, hit.Score, hit.Slice.URL, hit.Slice.Position, snippet(hit.Slice.Text, 160))
	}
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
