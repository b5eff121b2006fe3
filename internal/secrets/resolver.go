// Package secrets resolves secret references found in the cluster
// configuration. A value is either a literal or a reference of the form
// "<scheme>:<path>#<field>".
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/models"
)

const (
	SchemeVault = "vault"
	SchemeAWS   = "awssm"
)

var (
	ErrInvalidReference = errors.New("invalid secret reference")
	ErrSecretNotFound   = errors.New("secret not found")
)

// Backend looks up a single field of a stored secret.
type Backend interface {
	Lookup(ctx context.Context, path, field string) (string, error)
}

type Reference struct {
	Scheme string
	Path   string
	Field  string
}

func (r Reference) String() string {
	if len(r.Field) == 0 {
		return fmt.Sprintf("%s:%s", r.Scheme, r.Path)
	}
	return fmt.Sprintf("%s:%s#%s", r.Scheme, r.Path, r.Field)
}

// ParseReference reports ok=false for plain values, which are used as is.
func ParseReference(value string) (ref Reference, ok bool, err error) {

	scheme, rest, found := strings.Cut(value, ":")
	if !found {
		return Reference{}, false, nil
	}

	switch scheme {
	case SchemeVault, SchemeAWS:
	default:
		return Reference{}, false, nil
	}

	path, field, _ := strings.Cut(rest, "#")

	ref = Reference{
		Scheme: scheme,
		Path:   strings.Trim(strings.TrimSpace(path), "/"),
		Field:  strings.TrimSpace(field),
	}

	if len(ref.Path) == 0 {
		return ref, true, fmt.Errorf("%w: %q has no path", ErrInvalidReference, value)
	}

	// Vault secrets are always maps, so a field is required.
	if ref.Scheme == SchemeVault && len(ref.Field) == 0 {
		return ref, true, fmt.Errorf("%w: %q has no field", ErrInvalidReference, value)
	}

	return ref, true, nil
}

// Resolver turns configuration values into secrets. Backends are created on
// first use so a config with only literal values never touches Vault or AWS.
type Resolver struct {
	mu       sync.Mutex
	config   models.SecretsConfig
	backends map[string]Backend
}

func NewResolver(config models.SecretsConfig) *Resolver {
	return &Resolver{
		config:   config,
		backends: make(map[string]Backend),
	}
}

// Register installs a backend for scheme, replacing the default one.
func (r *Resolver) Register(scheme string, backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[scheme] = backend
}

// Resolve returns value unchanged unless it is a secret reference.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {

	ref, ok, err := ParseReference(value)

	if err != nil {
		return "", err
	}

	if !ok {
		return value, nil
	}

	backend, err := r.backend(ctx, ref.Scheme)
	if err != nil {
		return "", fmt.Errorf("failed to initialize %s backend: %w", ref.Scheme, err)
	}

	secret, err := backend.Lookup(ctx, ref.Path, ref.Field)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ref, err)
	}

	logrus.WithFields(logrus.Fields{
		"reference": ref.String(),
	}).Debugln("Resolved secret reference")

	return secret, nil
}

func (r *Resolver) backend(ctx context.Context, scheme string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if backend, ok := r.backends[scheme]; ok {
		return backend, nil
	}

	var (
		backend Backend
		err     error
	)

	switch scheme {
	case SchemeVault:
		backend, err = NewVaultBackend(r.config.Vault)
	case SchemeAWS:
		backend, err = NewAWSBackend(ctx, r.config.AWS)
	default:
		err = fmt.Errorf("%w: unknown scheme %q", ErrInvalidReference, scheme)
	}

	if err != nil {
		return nil, err
	}

	r.backends[scheme] = backend

	return backend, nil
}
