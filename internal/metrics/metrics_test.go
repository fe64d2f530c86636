package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSearch(t *testing.T) {
	c := NewCollector(2 * time.Second)

	c.ObserveSearch("fastest", "found", 3*time.Millisecond, 12)
	c.ObserveSearch("fastest", "found", time.Millisecond, 4)
	c.ObserveSearch("cheapest", "no_route", time.Millisecond, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Searches.WithLabelValues("fastest", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Searches.WithLabelValues("cheapest", "no_route")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.SearchDuration))
	// No settled sample for the search that settled nothing.
	assert.Equal(t, 1, testutil.CollectAndCount(c.SettledNodes))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.SearchTimeout))
}

func TestHandlerExposesRegistry(t *testing.T) {
	c := NewCollector(time.Second)
	c.Lines.Set(3)
	c.CacheHits.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.True(t, strings.Contains(out, "router_lines 3"), out)
	assert.True(t, strings.Contains(out, "router_cache_hits_total 1"), out)
}
