package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// meteredRouter builds a router with the metrics middleware backed by a
// manual reader, plus the storefront-shaped routes the tests hit.
func meteredRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(provider.Meter("http.server"), true))
	router.GET("/api/v1/products/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "name": "Ceramic Mug"})
	})
	router.POST("/api/v1/orders", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "PLACED"})
	})
	router.GET("/api/v1/orders/:id", func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})
	return router, reader
}

func collectHTTPMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func attrValue(set attribute.Set, key attribute.Key) (attribute.Value, bool) {
	return set.Value(key)
}

func TestHTTPMetrics_DisabledIsPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, cfg := range []HTTPMetricsConfig{
		{Enabled: false},
		{Enabled: true, MeterProvider: nil},
	} {
		router := gin.New()
		router.Use(HTTPMetrics(cfg))
		router.GET("/api/v1/products", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestHTTPMetrics_CountsRequestsPerRouteAndStatus(t *testing.T) {
	router, reader := meteredRouter(t)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/42", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/42", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	m := collectHTTPMetric(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byRoute := map[string]int64{}
	for _, dp := range sum.DataPoints {
		route, _ := attrValue(dp.Attributes, "http.route")
		status, _ := attrValue(dp.Attributes, "http.status_code")
		byRoute[route.AsString()] += dp.Value
		if route.AsString() == "/api/v1/orders/:id" {
			assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())
		}
	}
	assert.Equal(t, int64(3), byRoute["/api/v1/products/:id"])
	assert.Equal(t, int64(1), byRoute["/api/v1/orders/:id"])
}

func TestHTTPMetrics_RecordsDuration(t *testing.T) {
	router, reader := meteredRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/7", nil))

	m := collectHTTPMetric(t, reader, "http_server_request_duration_seconds")
	require.NotNil(t, m)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)

	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(1), dp.Count)
	// Latency series carry method and route but not status.
	_, hasStatus := attrValue(dp.Attributes, "http.status_code")
	assert.False(t, hasStatus)
	route, _ := attrValue(dp.Attributes, "http.route")
	assert.Equal(t, "/api/v1/products/:id", route.AsString())
}

func TestHTTPMetrics_RecordsPayloadSizes(t *testing.T) {
	router, reader := meteredRouter(t)

	body := strings.NewReader(`{"product_id":"42","quantity":2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	reqSize := collectHTTPMetric(t, reader, "http_server_request_size_bytes")
	require.NotNil(t, reqSize)
	reqHist := reqSize.Data.(metricdata.Histogram[float64])
	require.Len(t, reqHist.DataPoints, 1)
	assert.Equal(t, float64(32), reqHist.DataPoints[0].Sum)

	respSize := collectHTTPMetric(t, reader, "http_server_response_size_bytes")
	require.NotNil(t, respSize)
	respHist := respSize.Data.(metricdata.Histogram[float64])
	require.Len(t, respHist.DataPoints, 1)
	assert.Greater(t, respHist.DataPoints[0].Sum, float64(0))
}

func TestHTTPMetrics_UnmatchedRouteGrouped(t *testing.T) {
	router, reader := meteredRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/definitely/not", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	m := collectHTTPMetric(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	route, _ := attrValue(sum.DataPoints[0].Attributes, "http.route")
	assert.Equal(t, "unknown", route.AsString())
}

func TestHTTPMetrics_TagsAuthenticatedUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	userID := uuid.New()
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserIDKey, userID)
		c.Next()
	})
	router.Use(HTTPMetricsWithMeter(provider.Meter("http.server"), true))
	router.GET("/api/v1/orders", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"orders": []string{}})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusOK, w.Code)

	m := collectHTTPMetric(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	got, ok := attrValue(sum.DataPoints[0].Attributes, "user_id")
	require.True(t, ok)
	assert.Equal(t, userID.String(), got.AsString())
}

func TestHTTPMetricsWithMeter_DisabledIsPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(nil, false))
	router.GET("/api/v1/products", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
