package sessions

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thand-io/relay/internal/cluster"
	"github.com/thand-io/relay/internal/cluster/clustertest"
	"github.com/thand-io/relay/internal/models"
)

const (
	testUsername = "tsadmin"
	testPassword = "admin-password"
	testSecret   = "cluster-secret"
)

func newTestManager(t *testing.T) (*SessionManager, *clustertest.Server) {
	t.Helper()

	upstream := clustertest.NewServer(testUsername, testPassword, testSecret)
	t.Cleanup(upstream.Close)

	manager, err := NewSessionManager(models.ClusterConfig{
		Host:     upstream.Host(),
		Username: testUsername,
		Password: testPassword,
		Secret:   testSecret,
	}, upstream.ClientOptions())
	require.NoError(t, err)

	return manager, upstream
}

func TestNewSessionManager_RejectsIncompleteConfig(t *testing.T) {
	_, err := NewSessionManager(models.ClusterConfig{Host: "analytics.example.com"}, cluster.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrIncompleteClusterConfig)
}

func TestSessionManager_StartsUnauthenticated(t *testing.T) {
	manager, upstream := newTestManager(t)

	assert.False(t, manager.IsAuthenticated())
	assert.Nil(t, manager.Session())
	assert.Equal(t, int64(0), upstream.Logins())
}

func TestSessionManager_LoginSuccess(t *testing.T) {
	manager, upstream := newTestManager(t)

	err := manager.Login(context.Background())

	require.NoError(t, err)
	assert.True(t, manager.IsAuthenticated())
	require.NotNil(t, manager.Session())
	assert.NotEmpty(t, manager.Session().Cookies)
	assert.Equal(t, int64(1), upstream.Logins())
}

func TestSessionManager_LoginRejected(t *testing.T) {
	manager, upstream := newTestManager(t)
	upstream.FailLogin(http.StatusUnauthorized, "bad credentials")

	err := manager.Login(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamLoginFailed)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, "bad credentials", authErr.Body)
	assert.Equal(t, testUsername, authErr.Username)
	assert.NotContains(t, err.Error(), "bad credentials")

	assert.False(t, manager.IsAuthenticated())
	assert.Nil(t, manager.Session())

	logins, failures := manager.Stats()
	assert.Equal(t, int64(1), logins)
	assert.Equal(t, int64(1), failures)
}

func TestSessionManager_RejectedLoginLogOmitsUpstreamBody(t *testing.T) {
	manager, upstream := newTestManager(t)
	upstream.FailLogin(http.StatusUnauthorized, "bad credentials")

	saved := logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	defer logrus.StandardLogger().ReplaceHooks(saved)
	hook := test.NewGlobal()

	require.Error(t, manager.Login(context.Background()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, len("bad credentials"), entry.Data["body_bytes"])
	assert.NotContains(t, entry.Data, "body")
}

func TestSessionManager_LoginUnreachable(t *testing.T) {
	manager, upstream := newTestManager(t)
	upstream.Close()

	err := manager.Login(context.Background())

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, 0, authErr.Status)
	assert.NotNil(t, authErr.Err)
	assert.False(t, manager.IsAuthenticated())
}

func TestSessionManager_ReloginIsIdempotent(t *testing.T) {
	manager, upstream := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Login(ctx))
	first := manager.Session()

	require.NoError(t, manager.Login(ctx))
	second := manager.Session()

	assert.True(t, manager.IsAuthenticated())
	assert.NotEqual(t, first.UUID, second.UUID)
	assert.NotEqual(t, first.Cookies[0].Value, second.Cookies[0].Value)
	assert.Equal(t, int64(2), upstream.Logins())
}

func TestSessionManager_FailedReloginClearsSession(t *testing.T) {
	manager, upstream := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Login(ctx))
	require.True(t, manager.IsAuthenticated())

	upstream.FailLogin(http.StatusServiceUnavailable, "maintenance")

	err := manager.Login(ctx)
	require.Error(t, err)

	assert.False(t, manager.IsAuthenticated())
	assert.Nil(t, manager.Session())

	// A later successful login recovers.
	upstream.FailLogin(0, "")
	require.NoError(t, manager.Login(ctx))
	assert.True(t, manager.IsAuthenticated())
}

func TestSessionManager_EnsureSessionReusesHandle(t *testing.T) {
	manager, upstream := newTestManager(t)
	ctx := context.Background()

	first, err := manager.EnsureSession(ctx)
	require.NoError(t, err)

	second, err := manager.EnsureSession(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), upstream.Logins())
}

func TestSessionManager_FailedLoginIsNotCached(t *testing.T) {
	manager, upstream := newTestManager(t)
	ctx := context.Background()

	upstream.FailLogin(http.StatusInternalServerError, "boom")

	_, err := manager.EnsureSession(ctx)
	require.Error(t, err)
	_, err = manager.EnsureSession(ctx)
	require.Error(t, err)

	assert.Equal(t, int64(2), upstream.Logins())
}

func TestSessionManager_ConcurrentColdStartLogsInOnce(t *testing.T) {
	manager, upstream := newTestManager(t)
	upstream.DelayLogin(100 * time.Millisecond)

	const callers = 25

	var wg sync.WaitGroup
	sessions := make([]*models.Session, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = manager.EnsureSession(context.Background())
		}(i)
	}

	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, sessions[0], sessions[i])
	}

	assert.Equal(t, int64(1), upstream.Logins())
}

func TestSessionManager_ConcurrentCallersShareFailedLogin(t *testing.T) {
	manager, upstream := newTestManager(t)
	upstream.DelayLogin(100 * time.Millisecond)
	upstream.FailLogin(http.StatusInternalServerError, "boom")

	const callers = 10

	var wg sync.WaitGroup
	errs := make([]error, callers)

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = manager.EnsureSession(context.Background())
		}(i)
	}

	close(start)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrUpstreamLoginFailed)
	}

	// Callers that raced in after the shared flight finished may have
	// started one more; a thundering herd would be one per caller.
	assert.LessOrEqual(t, upstream.Logins(), int64(2))
	assert.False(t, manager.IsAuthenticated())
}

func TestSessionManager_CancelledCallerDoesNotCorruptState(t *testing.T) {
	manager, upstream := newTestManager(t)
	upstream.DelayLogin(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := manager.EnsureSession(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The detached login still completes and leaves a usable session.
	require.Eventually(t, manager.IsAuthenticated, 2*time.Second, 10*time.Millisecond)

	session, err := manager.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, session)
	assert.Equal(t, int64(1), upstream.Logins())
}
