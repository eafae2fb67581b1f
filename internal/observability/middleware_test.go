package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(buf *bytes.Buffer, id string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zerolog.New(buf).Level(zerolog.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(logger), RequestMetricsMiddleware(id))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bursts/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	return r
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var out map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &out))
	return out
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	r := newTestEngine(&buf, "mw-levels")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	entry := lastLogLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "/health", entry["route"])

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bursts/abc", nil))
	entry = lastLogLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/bursts/:id", entry["route"])
	assert.Equal(t, "/bursts/abc", entry["path"])
	assert.EqualValues(t, 404, entry["status"])
}

func TestRequestMetricsUseRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	r := newTestEngine(&buf, "mw-metrics")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bursts/one", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bursts/two", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	got := testutil.ToFloat64(httpRequests.WithLabelValues("mw-metrics", "GET", "/bursts/:id", "404"))
	if got != 2 {
		t.Fatalf("templated requests = %v, want 2", got)
	}
	got = testutil.ToFloat64(httpRequests.WithLabelValues("mw-metrics", "GET", unmatchedRoute, "404"))
	if got != 1 {
		t.Fatalf("unmatched requests = %v, want 1", got)
	}
}
