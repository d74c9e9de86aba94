package monitoring_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"todo-app/backend/internal/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMonitorRouter(m *monitoring.Monitor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(m.MetricsMiddleware())
	m.RegisterRoutes(router)
	router.GET("/tasks", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/tasks/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	return router
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestMetricsMiddleware(t *testing.T) {
	m := monitoring.NewMonitor()
	router := setupMonitorRouter(m)

	serve(router, "/tasks")
	serve(router, "/tasks/1")
	serve(router, "/tasks/2")
	serve(router, "/nowhere")

	metrics := m.GetMetrics()
	assert.Equal(t, int64(4), metrics.RequestCount)
	assert.Equal(t, int64(0), metrics.ActiveRequests)
	assert.Equal(t, int64(3), metrics.ErrorCount)
	assert.Equal(t, int64(1), metrics.StatusCodes["OK"])
	assert.Equal(t, int64(3), metrics.StatusCodes["Not Found"])
	assert.Equal(t, int64(2), metrics.Endpoints["GET /tasks/:id"])
	assert.Equal(t, int64(1), metrics.Endpoints["GET unmatched"])
}

func TestHealthHandlers(t *testing.T) {
	m := monitoring.NewMonitor()
	dbErr := error(nil)
	m.RegisterHealthCheck("database", func(ctx context.Context) error { return dbErr })
	m.RegisterHealthCheck("cache", func(ctx context.Context) error { return nil })
	router := setupMonitorRouter(m)

	w := serve(router, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, serve(router, "/readyz").Code)

	dbErr = errors.New("connection refused")

	w = serve(router, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "checks run on every probe")

	var body struct {
		Status string                            `json:"status"`
		Checks map[string]monitoring.HealthCheck `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["database"].Message)
	assert.Equal(t, "healthy", body.Checks["cache"].Status)

	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(router, "/livez").Code, "liveness ignores dependencies")
}

func TestMetricsHandler(t *testing.T) {
	m := monitoring.NewMonitor()
	m.RegisterStats("cache", func() map[string]interface{} {
		return map[string]interface{}{"hits": 3}
	})
	router := setupMonitorRouter(m)
	serve(router, "/tasks")

	w := serve(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "application")
	assert.Contains(t, body, "system")
	assert.JSONEq(t, `{"hits":3}`, string(body["cache"]))
}
