// Package broker mints per-user cluster tokens on top of the administrator
// session held by the session manager.
package broker

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/cluster"
	"github.com/thand-io/relay/internal/models"
	"github.com/thand-io/relay/internal/sessions"
)

// SessionSource hands out a usable administrator session, logging in first
// when there is none.
type SessionSource interface {
	EnsureSession(ctx context.Context) (*models.Session, error)
}

// TokenIssuer performs the token exchange against the cluster.
type TokenIssuer interface {
	RequestToken(ctx context.Context, session *models.Session, secret, username string) (*cluster.Response, error)
}

type TokenBroker struct {
	sessions SessionSource
	issuer   TokenIssuer

	requests atomic.Int64
	issued   atomic.Int64
	failures atomic.Int64
}

func NewTokenBroker(sessions SessionSource, issuer TokenIssuer) *TokenBroker {
	return &TokenBroker{
		sessions: sessions,
		issuer:   issuer,
	}
}

// NewFromManager wires a broker to a session manager and its cluster client.
func NewFromManager(manager *sessions.SessionManager) *TokenBroker {
	return NewTokenBroker(manager, manager.Client())
}

// GetToken exchanges the shared secret for a token for username. The token
// is returned exactly as the cluster sent it.
//
// A failed login is reported as SessionUnavailable and no token request is
// made. A rejected token request is reported as IssuanceFailed and the
// session is left alone: the cluster gives no way to tell an expired session
// apart from a bad username or secret.
func (b *TokenBroker) GetToken(ctx context.Context, secret, username string) (string, error) {

	b.requests.Add(1)

	if len(secret) == 0 {
		b.failures.Add(1)
		return "", fmt.Errorf("%w: shared secret is empty", ErrInvalidRequest)
	}

	if len(strings.TrimSpace(username)) == 0 {
		b.failures.Add(1)
		return "", fmt.Errorf("%w: username is empty", ErrInvalidRequest)
	}

	fields := logrus.Fields{
		"username": username,
	}

	session, err := b.sessions.EnsureSession(ctx)

	if err != nil {
		b.failures.Add(1)
		logrus.WithFields(fields).WithError(err).Errorln("Unable to establish cluster session, skipping token request")
		return "", &TokenError{
			Kind:     SessionUnavailable,
			Username: username,
			Err:      err,
		}
	}

	resp, err := b.issuer.RequestToken(ctx, session, secret, username)

	if err != nil {
		b.failures.Add(1)
		logrus.WithFields(fields).WithError(err).Errorln("Token request did not complete")
		return "", &TokenError{
			Kind:     IssuanceFailed,
			Username: username,
			Err:      err,
		}
	}

	if !resp.IsSuccess() {
		b.failures.Add(1)
		logrus.WithFields(fields).WithFields(logrus.Fields{
			"status":     resp.StatusCode,
			"body_bytes": len(resp.Body),
			"session":    session.UUID,
		}).Warnln("Cluster rejected token request; this can also mean the administrator session expired upstream")
		return "", &TokenError{
			Kind:     IssuanceFailed,
			Username: username,
			Status:   resp.StatusCode,
			Body:     string(resp.Body),
			Err:      ErrIssuanceFailed,
		}
	}

	b.issued.Add(1)

	logrus.WithFields(fields).Infoln("Issued cluster token")

	return string(resp.Body), nil
}

type Stats struct {
	Requests int64
	Issued   int64
	Failures int64
}

func (b *TokenBroker) Stats() Stats {
	return Stats{
		Requests: b.requests.Load(),
		Issued:   b.issued.Load(),
		Failures: b.failures.Load(),
	}
}
