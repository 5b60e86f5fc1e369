package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTokenizerOp(t *testing.T) {
	m := New()
	m.ObserveTokenizerOp("update", true, time.Second)
	m.ObserveTokenizerOp("update", false, time.Second)
	m.ObserveTokenizerOp("update", false, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenizerOpsTotal.WithLabelValues("update", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tokenizerOpsTotal.WithLabelValues("update", "failure")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTokenizerOp("verify", true, time.Millisecond)
	})
	assert.Nil(t, m.Registry())
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",path="/ping",status="200"} 1`), body)
}
