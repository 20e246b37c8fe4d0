package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPipelineRuns_CountsByStatus(t *testing.T) {
	before := testutil.ToFloat64(PipelineRuns.WithLabelValues("metrics-test", "success"))

	PipelineRuns.WithLabelValues("metrics-test", "success").Inc()
	PipelineRuns.WithLabelValues("metrics-test", "failure").Inc()

	require.InDelta(t, before+1, testutil.ToFloat64(PipelineRuns.WithLabelValues("metrics-test", "success")), 0.001)
	require.InDelta(t, 1, testutil.ToFloat64(PipelineRuns.WithLabelValues("metrics-test", "failure")), 0.001)
}

func TestCacheResult(t *testing.T) {
	require.Equal(t, "hit", CacheResult(true))
	require.Equal(t, "miss", CacheResult(false))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/things/{id}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	require.InDelta(t, before+2, testutil.ToFloat64(counter), 0.001)
	require.InDelta(t, 0, testutil.ToFloat64(HTTPRequestsInFlight), 0.001)
}
