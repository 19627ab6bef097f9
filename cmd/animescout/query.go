package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/animescout/animescout/internal/browse"
)

// queryFlags maps CLI flags to filter fields. Order matters: page goes last
// because every other field resets it.
var queryFlags = []struct {
	flag, field, usage string
}{
	{"q", "q", "Free-text search (at least two characters)"},
	{"genres", "genres", "Comma-separated genre ids"},
	{"min-score", "min_score", "Minimum score between 0 and 10"},
	{"type", "type", "tv, movie, ova, special, ona or music"},
	{"status", "status", "airing, complete or upcoming"},
	{"season", "season", "winter, spring, summer or fall (seasonal flow)"},
	{"year", "year", "Season year (seasonal flow)"},
	{"page", "page", "Page number"},
}

// QueryResult is the JSON form of a one-shot query.
type QueryResult struct {
	Query string `json:"query"`
	browse.ResultPage
}

func newQueryCmd() *cobra.Command {
	var (
		flow        string
		mockCatalog bool
		values      = make(map[string]*string, len(queryFlags))
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run one general, seasonal or top query and print the result",
		Example: `  animescout query --type movie --min-score 8.5
  animescout query --flow seasonal --year 2023 --season fall
  animescout query --flow top --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if mockCatalog {
				cfg.Jikan.Mock = true
			}

			f, err := browse.ParseFlow(flow)
			if err != nil {
				return err
			}

			state := browse.NewFilterState()
			for _, qf := range queryFlags {
				if !cmd.Flags().Changed(qf.flag) {
					continue
				}
				if err := state.Set(qf.field, *values[qf.flag]); err != nil {
					return err
				}
			}

			log := newLogger(cfg)
			defer log.Close()
			catalog, _ := newCatalog(cfg.Jikan, log.Logger)

			q := browse.BuildQuery(f, state, time.Now())
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Jikan.Timeout+5)*time.Second)
			defer cancel()

			page, err := browse.Execute(ctx, catalog, q)
			if err != nil {
				return err
			}

			if jsonOutput {
				printJSON(cmd, QueryResult{Query: q.String(), ResultPage: page})
				return nil
			}
			return printTable(cmd.OutOrStdout(), q, page)
		},
	}

	cmd.Flags().StringVar(&flow, "flow", "general", "general, seasonal or top")
	cmd.Flags().BoolVar(&mockCatalog, "mock", false, "Query the built-in catalog instead of Jikan")
	for _, qf := range queryFlags {
		values[qf.flag] = cmd.Flags().String(qf.flag, "", qf.usage)
	}
	return cmd
}

func printTable(out io.Writer, q browse.Query, page browse.ResultPage) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tSCORE\tTITLE\n")
	for _, item := range page.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\n", item.ID, strconv.FormatFloat(item.Score, 'f', 2, 64), item.Title)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	more := "last page"
	if page.HasNextPage {
		more = "more pages available"
	}
	_, err := fmt.Fprintf(out, "\n%s  page %d, %d items, %s\n", q.String(), page.Page, len(page.Items), more)
	return err
}
