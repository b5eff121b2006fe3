package sessions

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/cluster"
	"github.com/thand-io/relay/internal/models"
	"golang.org/x/sync/singleflight"
)

const (
	ensureFlight = "ensure"
	loginFlight  = "login"
)

// SessionManager holds the single administrator session against one cluster.
//
// The handle is present iff the manager is authenticated. Every transition
// happens under lock, while IsAuthenticated only reads an atomic pointer.
// Concurrent callers that need a login join the one already in flight.
type SessionManager struct {
	lock    sync.Mutex // held for the whole login exchange
	session atomic.Pointer[models.Session]
	flights singleflight.Group

	config models.ClusterConfig
	client *cluster.Client

	logins        atomic.Int64
	loginFailures atomic.Int64
}

// NewSessionManager validates the cluster config and prepares a client for
// it. No network traffic happens until the first login.
func NewSessionManager(config models.ClusterConfig, opts cluster.Options) (*SessionManager, error) {

	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := cluster.NewClient(config.Host, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster client: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"cluster":  client.Host(),
		"username": config.Username,
	}).Debugln("Created cluster session manager")

	return &SessionManager{
		config: config,
		client: client,
	}, nil
}

// IsAuthenticated reports whether a session handle is currently held.
func (m *SessionManager) IsAuthenticated() bool {
	return m.session.Load() != nil
}

// Session returns the current handle, or nil when unauthenticated.
func (m *SessionManager) Session() *models.Session {
	return m.session.Load()
}

func (m *SessionManager) Client() *cluster.Client {
	return m.client
}

func (m *SessionManager) Config() models.ClusterConfig {
	return m.config
}

// Login always performs a fresh login, replacing any current handle. Callers
// arriving while another forced login is in flight share its outcome.
func (m *SessionManager) Login(ctx context.Context) error {
	_, err := m.await(ctx, loginFlight, func(ctx context.Context) (*models.Session, error) {
		return m.login(ctx)
	})
	return err
}

// EnsureSession returns the current handle, logging in first if there is
// none. At most one login is started no matter how many callers race here.
func (m *SessionManager) EnsureSession(ctx context.Context) (*models.Session, error) {

	if session := m.session.Load(); session != nil {
		return session, nil
	}

	return m.await(ctx, ensureFlight, func(ctx context.Context) (*models.Session, error) {
		// Another flight may have finished between the fast path and here.
		if session := m.session.Load(); session != nil {
			return session, nil
		}
		return m.login(ctx)
	})
}

// await runs fn once per key across concurrent callers. The shared work is
// detached from any single caller's cancellation so a caller giving up never
// interrupts a login others are waiting on; the cluster client's timeout
// still bounds it.
func (m *SessionManager) await(
	ctx context.Context,
	key string,
	fn func(ctx context.Context) (*models.Session, error),
) (*models.Session, error) {

	detached := context.WithoutCancel(ctx)

	result := m.flights.DoChan(key, func() (any, error) {
		m.lock.Lock()
		defer m.lock.Unlock()
		return fn(detached)
	})

	select {
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Session), nil
	case <-ctx.Done():
		return nil, &AuthError{
			Host:     m.client.Host(),
			Username: m.config.Username,
			Err:      ctx.Err(),
		}
	}
}

// login must be called with the lock held.
func (m *SessionManager) login(ctx context.Context) (*models.Session, error) {

	m.logins.Add(1)

	fields := logrus.Fields{
		"cluster":  m.client.Host(),
		"username": m.config.Username,
	}

	resp, err := m.client.Login(ctx, m.config.Username, m.config.Password)

	if err != nil {
		m.fail()
		logrus.WithFields(fields).WithError(err).Errorln("Failed to reach cluster for login")
		return nil, &AuthError{
			Host:     m.client.Host(),
			Username: m.config.Username,
			Err:      err,
		}
	}

	if !resp.IsSuccess() {
		m.fail()
		logrus.WithFields(fields).WithFields(logrus.Fields{
			"status":     resp.StatusCode,
			"body_bytes": len(resp.Body),
		}).Errorln("Cluster rejected administrator login")
		return nil, &AuthError{
			Host:     m.client.Host(),
			Username: m.config.Username,
			Status:   resp.StatusCode,
			Body:     string(resp.Body),
			Err:      ErrUpstreamLoginFailed,
		}
	}

	session := models.NewSession(resp.Cookies)
	m.session.Store(session)

	logrus.WithFields(fields).WithFields(logrus.Fields{
		"session": session.UUID,
		"cookies": len(session.Cookies),
	}).Infoln("Logged in to cluster")

	return session, nil
}

// fail drops any handle so a failed re-login never leaves a stale session
// looking usable.
func (m *SessionManager) fail() {
	m.loginFailures.Add(1)
	m.session.Store(nil)
}

// Stats returns the number of login attempts and failed logins.
func (m *SessionManager) Stats() (logins int64, failures int64) {
	return m.logins.Load(), m.loginFailures.Load()
}
