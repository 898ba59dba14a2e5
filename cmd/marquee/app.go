package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/mmcdole/marquee/internal/adapter"
	"github.com/mmcdole/marquee/internal/adapter/source"
	"github.com/mmcdole/marquee/internal/collection"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/feed"
	"github.com/mmcdole/marquee/internal/metrics"
	"github.com/mmcdole/marquee/internal/personalize"
	"github.com/mmcdole/marquee/internal/search"
	"github.com/mmcdole/marquee/internal/store"
)

// app holds the wired services every command shares
type app struct {
	cfg     *adapter.Config
	logger  *slog.Logger
	locale  domain.Locale
	sources *source.Sources
	metrics *metrics.Metrics

	loader      *feed.Loader
	home        *feed.Home
	recommender *feed.Recommender
	store       *store.CollectionStore
	collections *collection.Service
	merger      *search.Merger
}

// loadConfig reads the config and sets up logging. Interactive commands
// without a log file stay silent so log lines don't tear the screen.
func loadConfig(configPath string, interactive bool) (*adapter.Config, *slog.Logger, error) {
	cfg, err := adapter.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	if interactive && cfg.Logging.File == "" {
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newApp(configPath string, interactive bool) (*app, error) {
	cfg, logger, err := loadConfig(configPath, interactive)
	if err != nil {
		return nil, err
	}
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("no catalog credentials configured, run `marquee setup` first")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger.Info("starting marquee", "version", Version)

	sources, err := source.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create content sources: %w", err)
	}

	sections, err := feed.SectionsFromConfig(cfg.Feed.Sections, cfg.Feed.CategoryTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed sections: %w", err)
	}

	loc := domain.Locale{Language: cfg.Locale.Language, Region: cfg.Locale.Region}
	m := metrics.New()

	loaderOpts := []feed.LoaderOption{
		feed.WithMinItems(cfg.Feed.MinItems),
		feed.WithMaxExtraPages(cfg.Feed.MaxExtraPages),
		feed.WithObserver(m),
	}
	if blocked := blockedTitles(cfg.Filters.BlockedTitles); len(blocked) > 0 {
		loaderOpts = append(loaderOpts, feed.WithItemFilter(func(it domain.MediaItem) bool {
			_, hit := blocked[search.Fold(it.Title)]
			return !hit
		}))
	}
	loader := feed.NewLoader(sources.Primary, sources.Catalog, feed.NewCache(), logger.With("component", "loader"), loaderOpts...)
	home := feed.NewHome(sections, loader, loc, cfg.Feed.Concurrency, logger.With("component", "home"))

	scorer := personalize.Scorer{
		PopularityWeight: cfg.Personalization.PopularityWeight,
		GenreWeight:      cfg.Personalization.GenreWeight,
		TopK:             cfg.Personalization.TopK,
		Floor:            cfg.Personalization.Floor,
	}
	candidates := make([]feed.Section, 0, len(cfg.Personalization.CandidateSections))
	for _, sec := range sections {
		if slices.Contains(cfg.Personalization.CandidateSections, sec.Key) {
			candidates = append(candidates, sec)
		}
	}
	recommender := feed.NewRecommender(loader, sources.Catalog, feed.NewCache(), scorer, candidates,
		cfg.Feed.PersonalTTL, cfg.Personalization.Limit, logger.With("component", "recommend"))

	storePath, err := adapter.ExpandHome(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection store: %w", err)
	}
	collections := collection.NewService(st, sources.Catalog, loc, logger.With("component", "collections"))

	merger := search.NewMerger(sources.Catalog, loc, logger.With("component", "search"),
		search.WithLocalPool(home),
		search.WithLocalPool(collections),
		search.WithSearchObserver(m),
	)

	return &app{
		cfg:         cfg,
		logger:      logger,
		locale:      loc,
		sources:     sources,
		metrics:     m,
		loader:      loader,
		home:        home,
		recommender: recommender,
		store:       st,
		collections: collections,
		merger:      merger,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close collection store", "error", err)
	}
	a.logger.Info("shutting down")
}

func blockedTitles(titles []string) map[string]struct{} {
	out := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		if f := search.Fold(t); f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}
