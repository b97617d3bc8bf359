package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	prod, err := New("production")
	require.NoError(t, err)
	assert.NotNil(t, prod)

	dev, err := New("development")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zap.DebugLevel))
}

func TestRequestLogger_LogsRequestWithID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), RequestLogger(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http_request", entry.Message)
	assert.Equal(t, "req-1", entry.ContextMap()["request_id"])
	assert.EqualValues(t, http.StatusNoContent, entry.ContextMap()["status"])
}

func TestRequestLogger_WarnsOnClientErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), RequestLogger(zap.New(core)))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.WarnLevel, logs.All()[0].Level)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestFromContext_PlainContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	FromContext(WithRequestID(context.Background(), "bg-7"), base).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "bg-7", logs.All()[0].ContextMap()["request_id"])
}

func TestRequestID_ReachesRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/work", func(c *gin.Context) {
		// handlers hand the plain request context to services
		FromContext(c.Request.Context(), base).Info("working")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/work", nil)
	req.Header.Set("X-Request-ID", "req-9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-9", logs.All()[0].ContextMap()["request_id"])
}

func TestFromContext_NoRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	FromContext(context.Background(), zap.New(core)).Info("plain")

	require.Equal(t, 1, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "request_id")
	assert.Empty(t, RequestIDFrom(context.Background()))
}

func TestWithCloudWatch_TeesJSONLines(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var sink bytes.Buffer

	log := WithCloudWatch(zap.New(core), zapcore.AddSync(&sink), zap.InfoLevel)
	log.Debug("noise")
	log.Info("price resolved", zap.String("option_id", "so_calc"))

	assert.Equal(t, 2, logs.Len(), "the original core still sees everything")

	lines := bytes.Split(bytes.TrimSpace(sink.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "price resolved", entry["msg"])
	assert.Equal(t, "so_calc", entry["option_id"])
	assert.Contains(t, entry, "timestamp")
}
