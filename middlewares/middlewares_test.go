package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixmycity-be/metrics"
	"fixmycity-be/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func okHandler(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }

func TestIssueRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := gin.New()
	r.POST("/api/issues", IssueRateLimiter(client, "issue_limit", 2, time.Hour, testutil.DiscardLogger()), okHandler)

	for i := 0; i < 2; i++ {
		rec := performRequest(r, http.MethodPost, "/api/issues", nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := performRequest(r, http.MethodPost, "/api/issues", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate limit exceeded", body["error"])
	assert.InDelta(t, time.Hour.Seconds(), body["retry_after"], 5)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "issue_limit:")
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	// The window expiring resets the count.
	mr.FastForward(time.Hour + time.Second)
	rec = performRequest(r, http.MethodPost, "/api/issues", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIssueRateLimiter_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	r := gin.New()
	r.POST("/api/issues", IssueRateLimiter(client, "issue_limit", 2, time.Hour, testutil.DiscardLogger()), okHandler)

	rec := performRequest(r, http.MethodPost, "/api/issues", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func postFrom(r http.Handler, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/issues", nil)
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestIssueRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.POST("/api/issues", IssueRateLimiter(client, "issue_limit", 2, time.Hour, testutil.DiscardLogger()), okHandler)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		rec := postFrom(r, "203.0.113.7:4000", "10.0.0."+strconv.Itoa(i))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{200, 200, 429, 429, 429}, codes)
	assert.Equal(t, []string{"issue_limit:203.0.113.7"}, mr.Keys())
}

func TestIssueRateLimiter_HonoursForwardedForFromTrustedProxy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies([]string{"203.0.113.7"}))
	r.POST("/api/issues", IssueRateLimiter(client, "issue_limit", 1, time.Hour, testutil.DiscardLogger()), okHandler)

	assert.Equal(t, http.StatusOK, postFrom(r, "203.0.113.7:4000", "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, postFrom(r, "203.0.113.7:4000", "198.51.100.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(r, "203.0.113.7:4000", "198.51.100.1").Code)
	assert.ElementsMatch(t, []string{"issue_limit:198.51.100.1", "issue_limit:198.51.100.2"}, mr.Keys())
}

func TestMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/issues", okHandler)

	performRequest(r, http.MethodGet, "/api/issues", nil)
	performRequest(r, http.MethodGet, "/api/issues", nil)
	performRequest(r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/api/issues", "200")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RequestCounter.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.RequestsInFlight))
}

func TestRequestLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	r := gin.New()
	r.Use(RequestLogger(logger.WithField("service", "test")))
	r.GET("/ping", okHandler)
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	performRequest(r, http.MethodGet, "/ping", nil)
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, 200, entry.Data["status"])
	assert.Equal(t, "/ping", entry.Data["path"])

	performRequest(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, "HTTP request failed", hook.LastEntry().Message)
}

func TestCORS_AllowAll(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"*"}))
	r.GET("/api/issues", okHandler)

	rec := performRequest(r, http.MethodOptions, "/api/issues", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://city.example"}))
	r.GET("/api/issues", okHandler)

	rec := performRequest(r, http.MethodGet, "/api/issues", map[string]string{"Origin": "https://city.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://city.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = performRequest(r, http.MethodGet, "/api/issues", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
