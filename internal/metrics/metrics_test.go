package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/domain"
)

func TestOnLoad(t *testing.T) {
	m := New()

	m.OnLoad(domain.LoadEvent{Section: "trending", Page: 1, Source: domain.SourceCache, Items: 20})
	m.OnLoad(domain.LoadEvent{Section: "trending", Page: 2, Source: domain.SourceSecondary, Items: 18, Fallback: true, Duration: 120 * time.Millisecond})
	m.OnLoad(domain.LoadEvent{Section: "popular_tv", Page: 1, Fallback: true, Err: domain.ErrSourceUnavailable})
	m.OnLoad(domain.LoadEvent{Section: "popular_tv", Page: 1, Err: context.Canceled})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowLoadsTotal.WithLabelValues("trending", "cache", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowLoadsTotal.WithLabelValues("trending", "secondary", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowLoadsTotal.WithLabelValues("popular_tv", "none", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowLoadsTotal.WithLabelValues("popular_tv", "none", "aborted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FallbacksTotal))
}

func TestOnSearch(t *testing.T) {
	m := New()

	m.OnSearch(domain.SearchEvent{Mode: "text", Results: 12})
	m.OnSearch(domain.SearchEvent{Mode: "people", Results: 3})
	m.OnSearch(domain.SearchEvent{Mode: "text", Err: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("text", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("text", "error")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.SearchResultsTotal))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.OnSearch(domain.SearchEvent{Mode: "discover", Results: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `marquee_searches_total{mode="discover",outcome="ok"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestSeparateRegistries(t *testing.T) {
	// each New registers on its own registry, so two instances do not collide
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
