package sessions

import (
	"errors"
	"fmt"
)

var ErrUpstreamLoginFailed = errors.New("upstream login failed")

// AuthError reports a failed administrator login. Status is zero when the
// cluster could not be reached at all; Body carries whatever the cluster
// answered and must only ever reach server logs.
type AuthError struct {
	Host     string
	Username string
	Status   int
	Body     string // kept out of Error so it never reaches the logs
	Err      error
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("login to %s as %s failed: %v", e.Host, e.Username, e.Err)
	}
	return fmt.Sprintf("login to %s as %s failed with status %d", e.Host, e.Username, e.Status)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is makes every AuthError match ErrUpstreamLoginFailed.
func (e *AuthError) Is(target error) bool {
	return target == ErrUpstreamLoginFailed
}
