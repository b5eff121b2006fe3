package broker

import (
	"errors"
	"fmt"
)

// ErrorKind separates "the relay cannot talk to the cluster" from "the
// cluster refused this particular user".
type ErrorKind int

const (
	// SessionUnavailable means the administrator login failed, so no token
	// request was attempted.
	SessionUnavailable ErrorKind = iota + 1
	// IssuanceFailed means the cluster rejected the token request itself.
	IssuanceFailed
)

func (k ErrorKind) String() string {
	switch k {
	case SessionUnavailable:
		return "session_unavailable"
	case IssuanceFailed:
		return "issuance_failed"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidRequest     = errors.New("invalid token request")
	ErrSessionUnavailable = errors.New("cluster session unavailable")
	ErrIssuanceFailed     = errors.New("token issuance failed")
)

// TokenError carries the upstream status and body for server-side logging.
// Neither must be echoed back to the client.
type TokenError struct {
	Kind     ErrorKind
	Username string
	Status   int
	Body     string
	Err      error
}

func (e *TokenError) Error() string {
	switch e.Kind {
	case SessionUnavailable:
		return fmt.Sprintf("cannot issue token for %s: %v", e.Username, e.Err)
	case IssuanceFailed:
		if e.Status == 0 {
			return fmt.Sprintf("token request for %s failed: %v", e.Username, e.Err)
		}
		return fmt.Sprintf("token request for %s rejected with status %d", e.Username, e.Status)
	default:
		return fmt.Sprintf("token request for %s failed: %v", e.Username, e.Err)
	}
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

func (e *TokenError) Is(target error) bool {
	switch target {
	case ErrSessionUnavailable:
		return e.Kind == SessionUnavailable
	case ErrIssuanceFailed:
		return e.Kind == IssuanceFailed
	}
	return false
}
