package source

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mmcdole/marquee/internal/adapter"
	"github.com/mmcdole/marquee/internal/adapter/source/curated"
	"github.com/mmcdole/marquee/internal/adapter/source/tmdb"
	"github.com/mmcdole/marquee/internal/domain"
)

// Sources groups the upstreams built from configuration.
// Primary is nil when no curated feed is configured; rows then go straight
// to the catalog.
type Sources struct {
	Primary domain.CuratedSource
	Catalog *tmdb.Client
}

// NewFromConfig creates the content sources from the application config
func NewFromConfig(cfg *adapter.Config, logger *slog.Logger) (*Sources, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("tmdb credentials are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []tmdb.Option{
		tmdb.WithRateLimit(cfg.TMDB.RequestsPerSecond, cfg.TMDB.Burst),
		tmdb.WithRetry(cfg.TMDB.MaxRetries, cfg.TMDB.RetryDelay),
	}
	if cfg.TMDB.Timeout > 0 {
		opts = append(opts, tmdb.WithHTTPClient(&http.Client{Timeout: cfg.TMDB.Timeout}))
	}

	s := &Sources{
		Catalog: tmdb.NewClient(cfg.TMDB.BaseURL, cfg.TMDB.APIKey, cfg.TMDB.ReadToken, logger.With("source", "tmdb"), opts...),
	}

	if cfg.Curated.BaseURL != "" {
		s.Primary = curated.NewClient(
			cfg.Curated.BaseURL,
			cfg.Curated.Token,
			cfg.Curated.Timeout,
			logger.With("source", "curated"),
			curated.WithRetry(cfg.Curated.MaxRetries, cfg.Curated.RetryDelay),
		)
	}
	return s, nil
}
