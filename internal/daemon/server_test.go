package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thand-io/relay/internal/cluster"
	"github.com/thand-io/relay/internal/cluster/clustertest"
	"github.com/thand-io/relay/internal/config"
	"github.com/thand-io/relay/internal/models"
)

const (
	testUsername = "tsadmin"
	testPassword = "admin-password"
	testSecret   = "cluster-secret"
)

func testConfig() *config.Config {
	return config.DefaultConfig()
}

func newTestServer(t *testing.T) (*Server, *gin.Engine, *clustertest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := clustertest.NewServer(testUsername, testPassword, testSecret)
	t.Cleanup(upstream.Close)

	provider := NewStaticBrokerProvider(models.ClusterConfig{
		Host:     upstream.Host(),
		Username: testUsername,
		Password: testPassword,
		Secret:   testSecret,
	}, upstream.ClientOptions())

	server := NewServer(testConfig(), provider)

	return server, server.Router(), upstream
}

func get(router http.Handler, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUsage(t *testing.T) {
	_, router, upstream := newTestServer(t)

	for _, path := range []string{"/", "/gettoken", "/gettoken/", "/token/alice"} {
		t.Run(path, func(t *testing.T) {
			w := get(router, path)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"message":"Use /gettoken/<username>, where <username> is a valid TS user."}`, w.Body.String())
		})
	}

	assert.Equal(t, int64(0), upstream.Logins())
}

func TestGetToken_Success(t *testing.T) {
	server, router, upstream := newTestServer(t)
	upstream.SetToken("alice", "tok_abc123")

	w := get(router, "/gettoken/alice")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok_abc123", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.NotEmpty(t, w.Header().Get(CorrelationHeader))

	assert.Equal(t, int64(1), server.TokensIssued.Load())
	assert.Equal(t, int64(1), upstream.Logins())

	// The session is reused for the next user.
	w = get(router, "/gettoken/bob")
	assert.Equal(t, "tok_bob", w.Body.String())
	assert.Equal(t, int64(1), upstream.Logins())
}

func TestGetToken_LoginFailure(t *testing.T) {
	server, router, upstream := newTestServer(t)
	upstream.FailLogin(http.StatusInternalServerError, "internal stack trace")

	w := get(router, "/gettoken/bob")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Error accessing the ThoughtSpot cluster.  Check the cluster status and login details."}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "stack trace")

	assert.Equal(t, int64(0), upstream.TokenCalls())
	assert.Equal(t, int64(1), server.TokenFailures.Load())
}

func TestGetToken_IssuanceFailure(t *testing.T) {
	_, router, upstream := newTestServer(t)
	upstream.FailTokens(http.StatusForbidden, "invalid secret")

	w := get(router, "/gettoken/alice")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Unable to get a token for user alice."}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "invalid secret")
}

func TestGetToken_NoClusterConfiguration(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider := NewBrokerProvider(func(context.Context) (models.ClusterConfig, error) {
		return models.ClusterConfig{}, models.ErrIncompleteClusterConfig
	}, cluster.Options{}, false)

	router := NewServer(testConfig(), provider).Router()

	w := get(router, "/gettoken/alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Error accessing the ThoughtSpot cluster.  Check the cluster status and login details."}`, w.Body.String())

	w = get(router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = get(router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCorrelationID_Echoed(t *testing.T) {
	_, router, _ := newTestServer(t)

	w := get(router, "/", CorrelationHeader, "req-1234")

	assert.Equal(t, "req-1234", w.Header().Get(CorrelationHeader))
}

func TestHealth(t *testing.T) {
	_, router, upstream := newTestServer(t)

	var health models.HealthResponse

	w := get(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusHealthy, health.Status)
	assert.Equal(t, upstream.Host(), health.Cluster)
	assert.False(t, health.Authenticated)

	get(router, "/gettoken/alice")

	w = get(router, "/health")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.True(t, health.Authenticated)
}

func TestHealth_DegradedAfterFailedLogin(t *testing.T) {
	_, router, upstream := newTestServer(t)
	upstream.FailLogin(http.StatusUnauthorized, "bad credentials")

	get(router, "/gettoken/alice")

	var health models.HealthResponse
	w := get(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusDegraded, health.Status)
	assert.False(t, health.Authenticated)
}

func TestMetrics(t *testing.T) {
	_, router, upstream := newTestServer(t)

	get(router, "/gettoken/alice")
	upstream.FailTokens(http.StatusNotFound, "no such user")
	get(router, "/gettoken/mallory")

	var metrics models.MetricsInfo
	w := get(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))

	assert.Equal(t, int64(2), metrics.TokenRequests)
	assert.Equal(t, int64(1), metrics.TokensIssued)
	assert.Equal(t, int64(1), metrics.TokenFailures)
	assert.Equal(t, int64(1), metrics.Logins)
	assert.Equal(t, int64(0), metrics.LoginFailures)
	assert.Equal(t, int64(3), metrics.TotalRequests)
}

func TestLogsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	cfg.Server.Logs.Enabled = true

	router := NewServer(cfg, NewStaticBrokerProvider(models.ClusterConfig{}, cluster.Options{})).Router()

	// Disabled by default
	assert.Equal(t, http.StatusBadRequest, get(newRouterWithDefaults(), "/logs").Code)

	cfg.Logs().Fire(logrus.WithError(errors.New("boom")).WithField("username", "alice"))

	w := get(router, "/logs?level=warning")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(router, "/logs?level=chatty")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func newRouterWithDefaults() *gin.Engine {
	return NewServer(testConfig(), NewStaticBrokerProvider(models.ClusterConfig{}, cluster.Options{})).Router()
}

func TestCORS_AllowsAnyOriginByDefault(t *testing.T) {
	_, router, _ := newTestServer(t)
	upstreamToken := "tok_alice"

	w := get(router, "/gettoken/alice", "Origin", "https://embed.example.com")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, upstreamToken, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/gettoken/alice", nil)
	req.Header.Set("Origin", "https://embed.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	preflight := httptest.NewRecorder()
	router.ServeHTTP(preflight, req)

	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Contains(t, preflight.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
}

func TestPrometheusMetrics(t *testing.T) {
	_, router, _ := newTestServer(t)

	get(router, "/gettoken/alice")

	w := get(router, "/metrics/prometheus")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "relay_tokens_issued_total 1")
	assert.Contains(t, body, "relay_cluster_logins_total 1")
	assert.Contains(t, body, "relay_cluster_authenticated 1")
}
