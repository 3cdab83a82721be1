package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMetrics_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("accountsvc-test"))
	r.Get("/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(
		httpRequestsTotal.WithLabelValues("accountsvc-test", "GET", "/accounts/{id}", "200"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/accounts/42", nil))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/accounts/7", nil))

	after := testutil.ToFloat64(
		httpRequestsTotal.WithLabelValues("accountsvc-test", "GET", "/accounts/{id}", "200"))

	assert.Equal(t, float64(2), after-before)
}

func TestPrometheusMetrics_CapturesErrorStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("accountsvc-test"))
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	before := testutil.ToFloat64(
		httpRequestsTotal.WithLabelValues("accountsvc-test", "POST", "/auth/login", "401"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/auth/login", nil))

	after := testutil.ToFloat64(
		httpRequestsTotal.WithLabelValues("accountsvc-test", "POST", "/auth/login", "401"))

	assert.Equal(t, float64(1), after-before)
}
