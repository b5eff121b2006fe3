// Package cluster talks to the analytics cluster's session and trusted
// authentication endpoints.
package cluster

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/common"
	"github.com/thand-io/relay/internal/models"
)

const (
	LoginPath = "/callosum/v1/tspublic/v1/session/login"
	TokenPath = "/callosum/v1/session/auth/token"

	// AccessLevelFull is the only access level the relay ever requests.
	AccessLevelFull = "FULL"

	RequestedByHeader = "X-Requested-By"
	RequestedByValue  = "ThoughtSpot"

	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseBytes bounds how much of any upstream reply is read.
	DefaultMaxResponseBytes = 1 << 20
)

type Options struct {
	Timeout time.Duration

	// InsecureSkipVerify turns off certificate verification. Off by default.
	InsecureSkipVerify bool

	// RootCAs overrides the system pool, mostly for private cluster CAs.
	RootCAs *x509.CertPool

	// MaxResponseBytes caps upstream reply bodies. Zero means
	// DefaultMaxResponseBytes. Larger replies fail with
	// resty.ErrResponseBodyTooLarge.
	MaxResponseBytes int
}

// Client is a thin resty wrapper bound to one cluster host. It deliberately
// has no cookie jar: the session handle is owned by the session manager and
// attached explicitly to every token request.
type Client struct {
	host   string
	client *resty.Client
}

func NewClient(host string, opts Options) (*Client, error) {

	normalized, err := common.NormalizeClusterHost(host)
	if err != nil {
		return nil, err
	}

	if common.IsInsecureScheme(host) {
		logrus.WithFields(logrus.Fields{
			"host": normalized,
		}).Warnln("Cluster host configured with http://, using https instead")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := opts.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}

	if opts.InsecureSkipVerify {
		logrus.WithFields(logrus.Fields{
			"host": normalized,
		}).Warnln("TLS certificate verification is disabled for the cluster connection")
	}

	client := resty.New().
		SetCookieJar(nil).
		SetBaseURL("https://"+normalized).
		SetHeader(RequestedByHeader, RequestedByValue).
		SetHeader("User-Agent", common.UserAgent()).
		SetTimeout(timeout).
		SetResponseBodyLimit(limit).
		SetLogger(logrus.StandardLogger()).
		SetTLSClientConfig(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // explicit opt-in
			RootCAs:            opts.RootCAs,
		})

	return &Client{
		host:   normalized,
		client: client,
	}, nil
}

func (c *Client) Host() string {
	return c.host
}

// BaseURL is the https origin every request is composed against.
func (c *Client) BaseURL() string {
	return c.client.BaseURL
}

// Response is the part of an upstream reply the relay cares about.
type Response struct {
	StatusCode int
	Body       []byte
	Cookies    []*http.Cookie
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Login submits the administrator credentials. A non-2xx status is not an
// error at this level; callers classify it.
func (c *Client) Login(ctx context.Context, username, password string) (*Response, error) {

	logrus.WithFields(logrus.Fields{
		"url":      c.BaseURL() + LoginPath,
		"username": username,
	}).Debugln("Sending cluster login request")

	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": username,
			"password": password,
		}).
		Post(LoginPath)

	if err != nil {
		return nil, fmt.Errorf("login request to %s failed: %w", c.host, err)
	}

	return toResponse(resp), nil
}

// RequestToken asks the cluster to mint a token for username. The access
// level is always FULL.
func (c *Client) RequestToken(ctx context.Context, session *models.Session, secret, username string) (*Response, error) {

	logrus.WithFields(logrus.Fields{
		"url":      c.BaseURL() + TokenPath,
		"username": username,
	}).Debugln("Sending cluster token request")

	req := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"secret_key":   secret,
			"username":     username,
			"access_level": AccessLevelFull,
		})

	if session != nil {
		req.SetCookies(session.Cookies)
	}

	resp, err := req.Post(TokenPath)

	if err != nil {
		return nil, fmt.Errorf("token request to %s failed: %w", c.host, err)
	}

	return toResponse(resp), nil
}

func toResponse(resp *resty.Response) *Response {
	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Cookies:    resp.Cookies(),
	}
}
