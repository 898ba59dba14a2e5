package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	TMDB            TMDBConfig            `mapstructure:"tmdb"`
	Curated         CuratedConfig         `mapstructure:"curated"`
	Locale          LocaleConfig          `mapstructure:"locale"`
	Feed            FeedConfig            `mapstructure:"feed"`
	Personalization PersonalizationConfig `mapstructure:"personalization"`
	Search          SearchConfig          `mapstructure:"search"`
	Server          ServerConfig          `mapstructure:"server"`
	Store           StoreConfig           `mapstructure:"store"`
	Logging         LoggingConfig         `mapstructure:"logging"`
	Filters         FiltersConfig         `mapstructure:"filters"`
}

// TMDBConfig configures the catalog source (secondary for feed rows, backend for search)
type TMDBConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`    // v3 key, sent as a query param
	ReadToken         string        `mapstructure:"read_token"` // v4 read token, sent as bearer
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        uint          `mapstructure:"max_retries"` // retries on 429 only
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
}

// CuratedConfig configures the primary feed source. An empty BaseURL disables it.
type CuratedConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint          `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// LocaleConfig selects the content language and region
type LocaleConfig struct {
	Language string `mapstructure:"language"`
	Region   string `mapstructure:"region"`
}

// FeedConfig holds home feed configuration
type FeedConfig struct {
	CategoryTTL   time.Duration   `mapstructure:"category_ttl"`
	PersonalTTL   time.Duration   `mapstructure:"personal_ttl"`
	MinItems      int             `mapstructure:"min_items"`       // below this a row fetches further pages
	MaxExtraPages int             `mapstructure:"max_extra_pages"` // ceiling for that recovery
	Concurrency   int             `mapstructure:"concurrency"`     // parallel row prefetches
	Sections      []SectionConfig `mapstructure:"sections"`
}

// SectionConfig describes one home feed row.
// Rows with Genres or SortBy fall back to discovery instead of a category list.
type SectionConfig struct {
	Key          string        `mapstructure:"key"`
	Title        string        `mapstructure:"title"`
	MediaType    string        `mapstructure:"media_type"`
	Category     string        `mapstructure:"category"`
	Curated      string        `mapstructure:"curated"` // curated section name, defaults to Key
	Genres       []int         `mapstructure:"genres"`
	SortBy       string        `mapstructure:"sort_by"`
	VoteCountGte int           `mapstructure:"vote_count_gte"`
	TTL          time.Duration `mapstructure:"ttl"` // 0 uses feed.category_ttl
}

// PersonalizationConfig holds recommendation scoring configuration
type PersonalizationConfig struct {
	PopularityWeight  float64  `mapstructure:"popularity_weight"`
	GenreWeight       float64  `mapstructure:"genre_weight"`
	TopK              int      `mapstructure:"top_k"`
	Floor             int      `mapstructure:"floor"`
	Limit             int      `mapstructure:"limit"`
	CandidateSections []string `mapstructure:"candidate_sections"`
}

// SearchConfig holds search configuration
type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig holds collection storage configuration. An empty Path keeps
// collections in memory only.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File       string `mapstructure:"file"` // empty logs to stderr
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// FiltersConfig holds the content filter step
type FiltersConfig struct {
	BlockedTitles []string `mapstructure:"blocked_titles"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TMDB: TMDBConfig{
			BaseURL:           "https://api.themoviedb.org/3",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 20,
			Burst:             10,
			MaxRetries:        3,
			RetryDelay:        500 * time.Millisecond,
		},
		Curated: CuratedConfig{
			Timeout:    5 * time.Second,
			MaxRetries: 2,
			RetryDelay: 250 * time.Millisecond,
		},
		Locale: LocaleConfig{
			Language: "en-US",
			Region:   "US",
		},
		Feed: FeedConfig{
			CategoryTTL:   15 * time.Minute,
			PersonalTTL:   24 * time.Hour,
			MinItems:      10,
			MaxExtraPages: 2,
			Concurrency:   4,
			Sections:      DefaultSections(),
		},
		Personalization: PersonalizationConfig{
			PopularityWeight:  1,
			GenreWeight:       100,
			TopK:              3,
			Floor:             10,
			Limit:             20,
			CandidateSections: []string{"trending", "popular_movies", "popular_tv"},
		},
		Search: SearchConfig{
			Debounce: 400 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8484",
		},
		Store: StoreConfig{
			Path: defaultDataPath(),
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// DefaultSections returns the built-in home feed layout
func DefaultSections() []SectionConfig {
	return []SectionConfig{
		{Key: "trending", Title: "Trending This Week", MediaType: "movie", Category: "trending"},
		{Key: "popular_movies", Title: "Popular Movies", MediaType: "movie", Category: "popular"},
		{Key: "popular_tv", Title: "Popular TV", MediaType: "tv", Category: "popular"},
		{Key: "now_playing", Title: "In Theaters", MediaType: "movie", Category: "now_playing"},
		{Key: "top_rated_movies", Title: "Top Rated Movies", MediaType: "movie", Category: "top_rated"},
		{Key: "top_rated_tv", Title: "Top Rated TV", MediaType: "tv", Category: "top_rated"},
		{Key: "action_movies", Title: "Action", MediaType: "movie", Genres: []int{28}, SortBy: "popularity.desc", VoteCountGte: 100},
		{Key: "animated_tv", Title: "Animation", MediaType: "tv", Genres: []int{16}, SortBy: "popularity.desc", VoteCountGte: 50},
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "marquee")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "marquee")
	}
}

// defaultDataPath returns the default collection database path for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "marquee", "collections.db")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "marquee", "collections.db")
	}
}

// newViper returns a viper instance with defaults and MARQUEE_* env overrides
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// Keys must be known to viper for AutomaticEnv to pick them up
	v.SetDefault("tmdb.base_url", cfg.TMDB.BaseURL)
	v.SetDefault("tmdb.api_key", cfg.TMDB.APIKey)
	v.SetDefault("tmdb.read_token", cfg.TMDB.ReadToken)
	v.SetDefault("curated.base_url", cfg.Curated.BaseURL)
	v.SetDefault("curated.token", cfg.Curated.Token)
	v.SetDefault("locale.language", cfg.Locale.Language)
	v.SetDefault("locale.region", cfg.Locale.Region)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)

	v.SetEnvPrefix("MARQUEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from file and environment.
// An empty path searches the default config directory and the working directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the user-editable part of the configuration
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = filepath.Join(defaultConfigPath(), "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// Set fields individually to keep snake_case key names
	v.Set("tmdb.base_url", cfg.TMDB.BaseURL)
	v.Set("tmdb.api_key", cfg.TMDB.APIKey)
	v.Set("tmdb.read_token", cfg.TMDB.ReadToken)
	v.Set("curated.base_url", cfg.Curated.BaseURL)
	v.Set("curated.token", cfg.Curated.Token)
	v.Set("locale.language", cfg.Locale.Language)
	v.Set("locale.region", cfg.Locale.Region)
	v.Set("feed.category_ttl", cfg.Feed.CategoryTTL.String())
	v.Set("feed.personal_ttl", cfg.Feed.PersonalTTL.String())
	v.Set("search.debounce", cfg.Search.Debounce.String())
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("store.path", cfg.Store.Path)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("filters.blocked_titles", cfg.Filters.BlockedTitles)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports configuration that cannot work
func (c *Config) Validate() error {
	var errs []error
	if c.TMDB.APIKey == "" && c.TMDB.ReadToken == "" {
		errs = append(errs, errors.New("tmdb.api_key or tmdb.read_token is required"))
	}
	if c.TMDB.BaseURL == "" {
		errs = append(errs, errors.New("tmdb.base_url is required"))
	}
	if c.Feed.CategoryTTL <= 0 || c.Feed.PersonalTTL <= 0 {
		errs = append(errs, errors.New("feed TTLs must be positive"))
	}
	if c.Feed.MinItems < 0 || c.Feed.MaxExtraPages < 0 {
		errs = append(errs, errors.New("feed.min_items and feed.max_extra_pages must not be negative"))
	}
	if c.Personalization.PopularityWeight < 0 || c.Personalization.GenreWeight < 0 {
		errs = append(errs, errors.New("personalization weights must not be negative"))
	}
	if c.Personalization.TopK <= 0 {
		errs = append(errs, errors.New("personalization.top_k must be positive"))
	}
	seen := make(map[string]bool, len(c.Feed.Sections))
	for _, s := range c.Feed.Sections {
		if s.Key == "" {
			errs = append(errs, errors.New("feed section without key"))
			continue
		}
		if seen[s.Key] {
			errs = append(errs, fmt.Errorf("duplicate feed section %q", s.Key))
		}
		seen[s.Key] = true
		if s.Category == "" && len(s.Genres) == 0 && s.SortBy == "" {
			errs = append(errs, fmt.Errorf("feed section %q needs a category or discover filters", s.Key))
		}
	}
	return errors.Join(errs...)
}

// IsConfigured returns true if catalog credentials are set
func (c *Config) IsConfigured() bool {
	return c.TMDB.APIKey != "" || c.TMDB.ReadToken != ""
}

// ExpandHome expands a leading ~ to the user's home directory
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
