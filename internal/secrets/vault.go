package secrets

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/models"
)

type vaultBackend struct {
	client *api.Client
}

// NewVaultBackend builds a client from VAULT_* environment variables, then
// applies any address, token or namespace set in config.
func NewVaultBackend(config models.VaultConfig) (Backend, error) {

	vaultConfig := api.DefaultConfig()
	if vaultConfig.Error != nil {
		return nil, fmt.Errorf("failed to read vault environment: %w", vaultConfig.Error)
	}

	if len(config.Address) > 0 {
		vaultConfig.Address = config.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if len(config.Token) > 0 {
		client.SetToken(config.Token)
	}

	if len(config.Namespace) > 0 {
		client.SetNamespace(config.Namespace)
	}

	logrus.WithField("address", client.Address()).Debugln("Created vault client")

	return &vaultBackend{client: client}, nil
}

// Lookup reads path through the logical API. KV v2 responses nest the
// payload under "data" next to "metadata"; both layouts are accepted.
func (v *vaultBackend) Lookup(ctx context.Context, path, field string) (string, error) {

	secret, err := v.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read vault path %s: %w", path, err)
	}

	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: vault path %s", ErrSecretNotFound, path)
	}

	data := secret.Data

	if nested, ok := data["data"].(map[string]any); ok {
		if _, versioned := data["metadata"]; versioned {
			data = nested
		}
	}

	value, ok := data[field]
	if !ok || value == nil {
		return "", fmt.Errorf("%w: field %s in vault path %s", ErrSecretNotFound, field, path)
	}

	if s, ok := value.(string); ok {
		return s, nil
	}

	return fmt.Sprint(value), nil
}
