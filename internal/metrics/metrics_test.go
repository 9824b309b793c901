package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(recordsTotal.WithLabelValues("feed", "inserted"))
	IncreaseRecordsMetric("feed", "inserted")
	assert.Equal(t, before+1, testutil.ToFloat64(recordsTotal.WithLabelValues("feed", "inserted")))

	before = testutil.ToFloat64(taskRetriesTotal.WithLabelValues("document.process"))
	IncreaseTaskRetriesMetric("document.process")
	assert.Equal(t, before+1, testutil.ToFloat64(taskRetriesTotal.WithLabelValues("document.process")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMiddleware("test")
	reg := prometheus.NewRegistry()
	for _, c := range m.Collectors() {
		require.NoError(t, reg.Register(c))
	}

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("418", "GET", "/items/{id}")))
}
