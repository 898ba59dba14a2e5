package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/api"
	"github.com/mmcdole/marquee/internal/debounce"
	"github.com/mmcdole/marquee/internal/search"
	"github.com/mmcdole/marquee/internal/tui"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func RunServeCommand(configPath *string) *cobra.Command {
	var (
		addr     string
		prefetch bool
	)

	command := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			ctx, stop := signalContext()
			defer stop()

			if prefetch {
				go func() {
					if err := a.home.LoadAll(ctx); err != nil {
						a.logger.Warn("home prefetch incomplete", "error", err)
					}
				}()
			}

			srv := api.NewServer(addr, api.Dependencies{
				Home:        a.home,
				Recommender: a.recommender,
				Collections: a.collections,
				Search:      a.merger,
				Metrics:     a.metrics.Handler(),
				Locale:      a.locale,
				Version:     Version,
				Logger:      a.logger.With("component", "api"),
			})
			return srv.ListenAndServe(ctx)
		},
	}

	command.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	command.Flags().BoolVar(&prefetch, "prefetch", true, "load the home feed on startup")
	return command
}

func RunBrowseCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Search interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			// Loaded rows join the pool of local matches
			go func() {
				if err := a.home.LoadAll(ctx); err != nil {
					a.logger.Warn("home prefetch incomplete", "error", err)
				}
			}()

			ctl := debounce.New(a.cfg.Search.Debounce, a.logger.With("component", "debounce"))
			defer ctl.Close()

			notifier := tui.NewNotifier()
			session := search.NewSession(a.merger, ctl, notifier.Notify, a.logger.With("component", "session"))
			defer session.Close()

			a.logger.Info("starting TUI")
			if err := tui.Run(session, a.collections, notifier); err != nil {
				a.logger.Error("TUI error", "error", err)
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		},
	}
}

func RunHomeCommand(configPath *string) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	command := &cobra.Command{
		Use:   "home",
		Short: "Print the home feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			if err := a.home.LoadAll(ctx); err != nil {
				cmd.PrintErrln("some rows failed to load:", err)
			}
			rows := a.home.Rows()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			for i, row := range rows {
				if i > 0 {
					cmd.Println()
				}
				printRow(cmd.OutOrStdout(), row, limit)
			}
			return nil
		},
	}

	command.Flags().IntVar(&limit, "limit", 5, "items shown per row (0 for all)")
	command.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return command
}

func RunRowCommand(configPath *string) *cobra.Command {
	var (
		pages   int
		refresh bool
		asJSON  bool
	)

	command := &cobra.Command{
		Use:   "row <section>",
		Short: "Load one home feed row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			key := args[0]
			if refresh {
				if err := a.home.Refresh(ctx, key); err != nil {
					return err
				}
			}
			for range max(pages, 1) {
				if err := a.home.LoadMore(ctx, key); err != nil {
					return err
				}
			}
			row, err := a.home.Row(key)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), row)
			}
			printRow(cmd.OutOrStdout(), row, 0)
			return nil
		},
	}

	command.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	command.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	command.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return command
}

func RunSearchCommand(configPath *string) *cobra.Command {
	var (
		mediaType string
		sortBy    string
		year      int
		yearFrom  int
		yearTo    int
		minVote   float64
		minVotes  int
		genres    []int
		page      int
		asJSON    bool
	)

	command := &cobra.Command{
		Use:   "search [text]",
		Short: "Search the catalog and your collections",
		Long: `Search by text, or discover by filters when no text is given.

  marquee search batman
  marquee search --type tv --genre 16 --sort rating
  marquee search --type person keanu`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := url.Values{}
			v.Set("q", strings.Join(args, " "))
			v.Set("type", mediaType)
			v.Set("sort", sortBy)
			setInt := func(name string, n int) {
				if n > 0 {
					v.Set(name, strconv.Itoa(n))
				}
			}
			setInt("year", year)
			setInt("year_from", yearFrom)
			setInt("year_to", yearTo)
			setInt("min_votes", minVotes)
			setInt("page", page)
			if minVote > 0 {
				v.Set("min_vote", strconv.FormatFloat(minVote, 'f', -1, 64))
			}
			if len(genres) > 0 {
				ids := make([]string, len(genres))
				for i, g := range genres {
					ids[i] = strconv.Itoa(g)
				}
				v.Set("genres", strings.Join(ids, ","))
			}
			q, err := api.ParseQuery(v)
			if err != nil {
				return err
			}

			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			res, err := a.merger.Search(ctx, q)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if res.Mode == search.ModePeople {
				printPeople(cmd.OutOrStdout(), res.People)
			} else {
				printItems(cmd.OutOrStdout(), res.Items)
			}
			cmd.Printf("\n%s: page %d/%d, %d results", res.Mode, res.Page, res.TotalPages, res.TotalResults)
			if res.LocalMatches > 0 {
				cmd.Printf(", %d from your collections", res.LocalMatches)
			}
			cmd.Println()
			return nil
		},
	}

	f := command.Flags()
	f.StringVar(&mediaType, "type", "", "movie, tv, person or all")
	f.StringVar(&sortBy, "sort", "", "relevance, popularity, rating, release_date or title")
	f.IntVar(&year, "year", 0, "release year")
	f.IntVar(&yearFrom, "year-from", 0, "earliest release year")
	f.IntVar(&yearTo, "year-to", 0, "latest release year")
	f.Float64Var(&minVote, "min-vote", 0, "minimum rating (0-10)")
	f.IntVar(&minVotes, "min-votes", 0, "minimum vote count")
	f.IntSliceVar(&genres, "genre", nil, "genre ids, all must match")
	f.IntVar(&page, "page", 1, "result page")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return command
}

func RunRecommendCommand(configPath *string) *cobra.Command {
	var asJSON bool

	command := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend titles based on your favorites",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			favs, err := a.collections.Favorites()
			if err != nil {
				return err
			}
			res, err := a.recommender.ForYou(ctx, favs, a.locale)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if len(favs) == 0 {
				cmd.Println("No favorites yet, showing popular titles.")
			}
			printItems(cmd.OutOrStdout(), res.Items)
			return nil
		},
	}

	command.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return command
}
