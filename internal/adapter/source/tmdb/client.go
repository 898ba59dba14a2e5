package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/time/rate"

	"github.com/mmcdole/marquee/internal/domain"
)

const (
	sourceName     = "tmdb"
	defaultTimeout = 10 * time.Second
	userAgent      = "Marquee/1.0"
	maxErrorBody   = 512
)

// Client implements domain.CatalogSource against the TMDB v3 API
type Client struct {
	baseURL    string
	apiKey     string
	readToken  string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries uint
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets how often a 429 response is retried and the base backoff delay
func WithRetry(maxRetries uint, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// NewClient creates a new TMDB API client. Either apiKey (v3) or readToken
// (v4 bearer) must be set.
func NewClient(baseURL, apiKey, readToken string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		readToken: readToken,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an authenticated GET, retrying on 429 only
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	var body []byte
	err := retry.Do(
		func() error {
			var err error
			body, err = c.send(ctx, reqURL)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.maxRetries+1),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRateLimited),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("tmdb rate limited, retrying", "attempt", n+1, "path", path)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, reqURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.readToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.readToken)
	}

	c.logger.Debug("tmdb request", "url", redact(reqURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		c.logger.Error("tmdb request failed", "error", err)
		return nil, &domain.TransportError{Source: sourceName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Source: sourceName, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		c.logger.Error("tmdb request error", "status", resp.StatusCode, "body", snippet)
		return nil, &domain.TransportError{Source: sourceName, StatusCode: resp.StatusCode, Err: errors.New(snippet)}
	}

	return body, nil
}

func isRateLimited(err error) bool {
	var te *domain.TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusTooManyRequests
}

// redact hides the api key in logged URLs
func redact(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	if q.Has("api_key") {
		q.Set("api_key", "***")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

// parsePage decodes a paged results response
func parsePage(body []byte) (*pagedResponse, error) {
	var resp pagedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return &resp, nil
}

func localeQuery(loc domain.Locale, page int) url.Values {
	q := url.Values{}
	if loc.Language != "" {
		q.Set("language", loc.Language)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	return q
}

// Category returns one page of a built-in list: popular, top_rated,
// now_playing, upcoming, airing_today, on_the_air or trending.
func (c *Client) Category(ctx context.Context, mediaType domain.MediaType, category string, page int, loc domain.Locale) (domain.Page, error) {
	if !mediaType.IsTitle() {
		return domain.Page{}, fmt.Errorf("category %q: unsupported media type %q", category, mediaType)
	}

	q := localeQuery(loc, page)
	var path string
	switch category {
	case "trending":
		path = fmt.Sprintf("/trending/%s/week", mediaType)
	default:
		path = fmt.Sprintf("/%s/%s", mediaType, url.PathEscape(category))
		if loc.Region != "" && mediaType == domain.MediaTypeMovie {
			q.Set("region", loc.Region)
		}
	}

	body, err := c.doRequest(ctx, path, q)
	if err != nil {
		return domain.Page{}, err
	}
	resp, err := parsePage(body)
	if err != nil {
		return domain.Page{}, err
	}
	return resp.toPage(mediaType), nil
}

// Discover returns one page of titles matching filters
func (c *Client) Discover(ctx context.Context, mediaType domain.MediaType, f domain.DiscoverFilters, page, pageSize int) (domain.Page, error) {
	if !mediaType.IsTitle() {
		return domain.Page{}, fmt.Errorf("discover: unsupported media type %q", mediaType)
	}

	q := localeQuery(domain.Locale{Language: f.Language}, page)
	q.Set("include_adult", "false")
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
	}
	if len(f.Genres) > 0 {
		ids := make([]string, len(f.Genres))
		for i, g := range f.Genres {
			ids[i] = strconv.Itoa(g)
		}
		q.Set("with_genres", strings.Join(ids, ","))
	}
	if f.VoteCountGte > 0 {
		q.Set("vote_count.gte", strconv.Itoa(f.VoteCountGte))
	}
	if f.VoteAverageGte > 0 {
		q.Set("vote_average.gte", strconv.FormatFloat(f.VoteAverageGte, 'f', -1, 64))
	}
	if f.Region != "" {
		q.Set("region", f.Region)
	}
	switch mediaType {
	case domain.MediaTypeMovie:
		setIf(q, "primary_release_date.gte", f.ReleaseDateFrom)
		setIf(q, "primary_release_date.lte", f.ReleaseDateTo)
	case domain.MediaTypeTV:
		setIf(q, "first_air_date.gte", firstNonEmpty(f.AirDateFrom, f.ReleaseDateFrom))
		setIf(q, "first_air_date.lte", firstNonEmpty(f.AirDateTo, f.ReleaseDateTo))
	}

	body, err := c.doRequest(ctx, "/discover/"+string(mediaType), q)
	if err != nil {
		return domain.Page{}, err
	}
	resp, err := parsePage(body)
	if err != nil {
		return domain.Page{}, err
	}

	p := resp.toPage(mediaType)
	if f.WithPoster {
		p.Items = withPoster(p.Items)
	}
	if pageSize > 0 && len(p.Items) > pageSize {
		p.Items = p.Items[:pageSize]
	}
	return p, nil
}

// Search returns one page of movies and/or tv shows matching query.
// People in multi-search results are dropped; use SearchPeople for them.
func (c *Client) Search(ctx context.Context, query string, page int, f domain.SearchFilters) (domain.Page, error) {
	q := localeQuery(domain.Locale{Language: f.Language}, page)
	q.Set("query", query)
	q.Set("include_adult", "false")
	if f.Region != "" {
		q.Set("region", f.Region)
	}

	var path string
	switch f.Type {
	case domain.MediaTypeMovie:
		path = "/search/movie"
		if f.Year > 0 {
			q.Set("primary_release_year", strconv.Itoa(f.Year))
		}
	case domain.MediaTypeTV:
		path = "/search/tv"
		if f.Year > 0 {
			q.Set("first_air_date_year", strconv.Itoa(f.Year))
		}
	default:
		path = "/search/multi"
	}

	body, err := c.doRequest(ctx, path, q)
	if err != nil {
		return domain.Page{}, err
	}
	resp, err := parsePage(body)
	if err != nil {
		return domain.Page{}, err
	}
	return resp.toPage(f.Type), nil
}

// SearchPeople returns one page of people matching query
func (c *Client) SearchPeople(ctx context.Context, query string, page int, loc domain.Locale) (domain.PeoplePage, error) {
	q := localeQuery(loc, page)
	q.Set("query", query)
	q.Set("include_adult", "false")

	body, err := c.doRequest(ctx, "/search/person", q)
	if err != nil {
		return domain.PeoplePage{}, err
	}
	resp, err := parsePage(body)
	if err != nil {
		return domain.PeoplePage{}, err
	}
	return domain.PeoplePage{
		People:       MapPeople(resp.Results),
		Page:         resp.Page,
		TotalPages:   resp.TotalPages,
		TotalResults: resp.TotalResults,
	}, nil
}

// Details fetches a single title
func (c *Client) Details(ctx context.Context, key domain.ItemKey, loc domain.Locale) (domain.MediaItem, error) {
	if !key.MediaType.IsTitle() {
		return domain.MediaItem{}, fmt.Errorf("details: unsupported media type %q", key.MediaType)
	}
	path := fmt.Sprintf("/%s/%d", key.MediaType, key.ID)
	body, err := c.doRequest(ctx, path, localeQuery(loc, 0))
	if err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
			return domain.MediaItem{}, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
		}
		return domain.MediaItem{}, err
	}

	var dto resultDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return domain.MediaItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	item, ok := MapItem(dto, key.MediaType)
	if !ok {
		return domain.MediaItem{}, fmt.Errorf("%s: %w", key, domain.ErrMalformedResponse)
	}
	return item, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func withPoster(items []domain.MediaItem) []domain.MediaItem {
	out := items[:0:0]
	for _, it := range items {
		if it.PosterPath != "" {
			out = append(out, it)
		}
	}
	return out
}
