package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/invitegate/pkg/metrics"
)

func TestMetricsMiddlewareObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	before := testutil.CollectAndCount(metrics.APILatency)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Equal(t, before+1, testutil.CollectAndCount(metrics.APILatency))
}

func TestMetricsMiddlewareLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	before := testutil.CollectAndCount(metrics.APILatency)

	// Distinct raw paths under one method must collapse into a single series.
	for _, path := range []string{"/random/1", "/random/2", "/other"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("PURGE", path, nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	}

	require.Equal(t, before+1, testutil.CollectAndCount(metrics.APILatency))
	require.Zero(t, testutil.ToFloat64(metrics.APIInFlight))
}
