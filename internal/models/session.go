package models

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Session is the handle returned by a successful administrator login. The
// cookies are opaque to the relay and are replayed on token requests.
type Session struct {
	UUID          uuid.UUID      `json:"uuid"`
	Cookies       []*http.Cookie `json:"-"`
	EstablishedAt time.Time      `json:"established_at"`
}

func NewSession(cookies []*http.Cookie) *Session {
	copied := make([]*http.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		if cookie == nil {
			continue
		}
		c := *cookie
		copied = append(copied, &c)
	}

	return &Session{
		UUID:          uuid.New(),
		Cookies:       copied,
		EstablishedAt: time.Now().UTC(),
	}
}

func (s *Session) Age() time.Duration {
	return time.Since(s.EstablishedAt)
}
