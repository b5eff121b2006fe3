// Package agent assembles the relay from its configuration and runs it,
// either in the foreground or under the host's service manager.
package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/config"
	"github.com/thand-io/relay/internal/daemon"
	"github.com/thand-io/relay/internal/models"
	"github.com/thand-io/relay/internal/secrets"
)

// NewBrokerProvider binds the cluster file, secret references and TLS
// options from cfg into a provider. The cluster file is read on first use.
func NewBrokerProvider(cfg *config.Config) (*daemon.BrokerProvider, error) {

	opts, err := cfg.ClusterOptions()
	if err != nil {
		return nil, err
	}

	resolver := secrets.NewResolver(cfg.Secrets)

	load := func(ctx context.Context) (models.ClusterConfig, error) {
		return cfg.LoadClusterConfig(ctx, resolver)
	}

	return daemon.NewBrokerProvider(load, opts, cfg.Cluster.ReloadOnRequest), nil
}

// StartWebService starts the token relay and returns once it is listening.
func StartWebService(cfg *config.Config) (*daemon.Server, error) {

	provider, err := NewBrokerProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare cluster access: %w", err)
	}

	// Surface a broken cluster file at startup instead of on the first
	// browser request. The relay still starts; logins stay lazy.
	if _, err := provider.Get(context.Background()); err != nil {
		logrus.WithError(err).Warnln("Cluster configuration is not usable yet")
	}

	server := daemon.NewServer(cfg, provider)

	if err := server.Start(); err != nil {
		return nil, err
	}

	return server, nil
}
