package curated

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

	"github.com/mmcdole/marquee/internal/domain"
)

const (
	sourceName     = "curated"
	defaultTimeout = 5 * time.Second
	userAgent      = "Marquee/1.0"
)

// Client implements domain.CuratedSource for an editorial feed service.
// The service exposes GET /sections/{section}?page=&language=&region=.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries uint
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithRetry sets how often a 429 response is retried and the base backoff delay
func WithRetry(maxRetries uint, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// NewClient creates a new curated feed client. A timeout <= 0 uses the default.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryDelay: 250 * time.Millisecond,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Browse returns one page of a curated section
func (c *Client) Browse(ctx context.Context, section string, page int, loc domain.Locale) (domain.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 1)))
	if loc.Language != "" {
		q.Set("language", loc.Language)
	}
	if loc.Region != "" {
		q.Set("region", loc.Region)
	}

	body, err := c.doRequest(ctx, "/sections/"+url.PathEscape(section), q)
	if err != nil {
		return domain.Page{}, err
	}

	var resp sectionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn("curated response not decodable", "section", section, "error", err)
		return domain.Page{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	if resp.Page == 0 {
		resp.Page = page
	}
	return domain.Page{
		Items:        MapItems(resp.entries()),
		Page:         resp.Page,
		TotalPages:   resp.TotalPages,
		TotalResults: resp.TotalResults,
	}, nil
}

// doRequest performs an authenticated GET, retrying on 429 only
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
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
		retry.RetryIf(func(err error) bool {
			var te *domain.TransportError
			return errors.As(err, &te) && te.StatusCode == http.StatusTooManyRequests
		}),
	)
	return body, err
}

func (c *Client) send(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("curated request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, &domain.TransportError{Source: sourceName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Source: sourceName, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("curated request error", "status", resp.StatusCode)
		return nil, &domain.TransportError{Source: sourceName, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	return body, nil
}
