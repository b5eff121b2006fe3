package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrIncompleteClusterConfig = errors.New("incomplete cluster configuration")

// ClusterConfig identifies the analytics cluster and the administrator
// identity used to mint user tokens on it. It is immutable once handed to a
// session manager; picking up new credentials means building a new manager.
type ClusterConfig struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"-"`
	Secret   string `json:"-"`
}

// Validate checks that every field is set.
func (c ClusterConfig) Validate() error {
	var missing []string

	if len(strings.TrimSpace(c.Host)) == 0 {
		missing = append(missing, "host")
	}
	if len(strings.TrimSpace(c.Username)) == 0 {
		missing = append(missing, "username")
	}
	if len(c.Password) == 0 {
		missing = append(missing, "password")
	}
	if len(c.Secret) == 0 {
		missing = append(missing, "secret")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteClusterConfig, strings.Join(missing, ", "))
	}

	return nil
}

// Equal reports whether both configs describe the same identity on the
// same cluster.
func (c ClusterConfig) Equal(other ClusterConfig) bool {
	return c.Host == other.Host &&
		c.Username == other.Username &&
		c.Password == other.Password &&
		c.Secret == other.Secret
}

// String never includes the password or the shared secret.
func (c ClusterConfig) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.Host)
}
