// Package clustertest provides an in-process TLS stand-in for the analytics
// cluster's login and token endpoints.
package clustertest

import (
	"crypto/x509"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thand-io/relay/internal/cluster"
)

const SessionCookie = "JSESSIONID"

// TokenRequest is what the mock observed on the token endpoint.
type TokenRequest struct {
	SecretKey   string
	Username    string
	AccessLevel string
	Session     string
	RequestedBy string
}

// Server counts every call so tests can assert on upstream traffic.
type Server struct {
	*httptest.Server

	Username string
	Password string
	Secret   string

	mu sync.Mutex

	loginStatus int
	loginBody   string
	loginDelay  time.Duration
	tokenStatus int
	tokenBody   string
	tokens      map[string]string

	sessions      map[string]struct{}
	tokenRequests []TokenRequest

	logins      atomic.Int64
	tokenCalls  atomic.Int64
	sessionSeed atomic.Int64
}

// NewServer starts a TLS mock that accepts the given administrator
// credentials and shared secret.
func NewServer(username, password, secret string) *Server {
	s := &Server{
		Username: username,
		Password: password,
		Secret:   secret,
		tokens:   make(map[string]string),
		sessions: make(map[string]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cluster.LoginPath, s.handleLogin)
	mux.HandleFunc(cluster.TokenPath, s.handleToken)

	s.Server = httptest.NewTLSServer(mux)

	return s
}

// Host is the host:port to configure the relay with.
func (s *Server) Host() string {
	return strings.TrimPrefix(s.URL, "https://")
}

// RootCAs trusts the mock's self-signed certificate.
func (s *Server) RootCAs() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(s.Certificate())
	return pool
}

// ClientOptions returns options that let a cluster client reach the mock.
func (s *Server) ClientOptions() cluster.Options {
	return cluster.Options{
		Timeout: 5 * time.Second,
		RootCAs: s.RootCAs(),
	}
}

// FailLogin forces every login to answer with status and body. A zero
// status restores normal credential checking.
func (s *Server) FailLogin(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginStatus = status
	s.loginBody = body
}

// DelayLogin slows down every login, widening concurrency windows.
func (s *Server) DelayLogin(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginDelay = d
}

// FailTokens forces every token request to answer with status and body.
func (s *Server) FailTokens(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenStatus = status
	s.tokenBody = body
}

// SetToken fixes the token body returned for username.
func (s *Server) SetToken(username, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[username] = token
}

// ExpireSessions forgets every issued session, as a cluster restart would.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]struct{})
}

func (s *Server) Logins() int64 {
	return s.logins.Load()
}

func (s *Server) TokenCalls() int64 {
	return s.tokenCalls.Load()
}

func (s *Server) TokenRequests() []TokenRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TokenRequest(nil), s.tokenRequests...)
}

func (s *Server) handleLogin(w http.ResponseWriter, req *http.Request) {
	s.logins.Add(1)

	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := req.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	status, body, delay := s.loginStatus, s.loginBody, s.loginDelay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return
		}
	}

	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}

	if req.PostForm.Get("username") != s.Username || req.PostForm.Get("password") != s.Password {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"USER_NOT_AUTHENTICATED"}`))
		return
	}

	session := fmt.Sprintf("session-%d", s.sessionSeed.Add(1))

	s.mu.Lock()
	s.sessions[session] = struct{}{}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: session, Path: "/"})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"userName":"` + s.Username + `"}`))
}

func (s *Server) handleToken(w http.ResponseWriter, req *http.Request) {
	s.tokenCalls.Add(1)

	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := req.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	observed := TokenRequest{
		SecretKey:   req.PostForm.Get("secret_key"),
		Username:    req.PostForm.Get("username"),
		AccessLevel: req.PostForm.Get("access_level"),
		RequestedBy: req.Header.Get(cluster.RequestedByHeader),
	}
	if cookie, err := req.Cookie(SessionCookie); err == nil {
		observed.Session = cookie.Value
	}

	s.mu.Lock()
	s.tokenRequests = append(s.tokenRequests, observed)
	status, body := s.tokenStatus, s.tokenBody
	_, validSession := s.sessions[observed.Session]
	token, hasToken := s.tokens[observed.Username]
	s.mu.Unlock()

	switch {
	case status != 0:
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	case !validSession:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("session expired"))
	case observed.SecretKey != s.Secret:
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid secret"))
	case len(observed.Username) == 0:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("missing username"))
	default:
		if !hasToken {
			token = "tok_" + observed.Username
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(token))
	}
}
