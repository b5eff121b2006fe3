package config

import (
	"crypto/x509"
	"fmt"
	"os"

	"github.com/thand-io/relay/internal/cluster"
	"github.com/thand-io/relay/internal/models"
)

// Config represents the application configuration structure
type Config struct {
	Server  models.ServerConfig    `mapstructure:"server"`
	Cluster models.ClusterSettings `mapstructure:"cluster"`
	Logging models.LoggingConfig   `mapstructure:"logging"`
	Secrets models.SecretsConfig   `mapstructure:"secrets"`

	configFile string
	logs       *LogBuffer
}

// ConfigFile returns the yaml file that was loaded, if any.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// Logs returns the buffer of recent log entries. It is nil until logging
// has been set up by Load.
func (c *Config) Logs() *LogBuffer {
	return c.logs
}

// ListenAddress is the host:port the front door binds to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ClusterOptions derives the upstream client options from the cluster
// settings, loading the CA bundle when one is configured.
func (c *Config) ClusterOptions() (cluster.Options, error) {

	opts := cluster.Options{
		Timeout:            c.Cluster.Timeout,
		InsecureSkipVerify: c.Cluster.InsecureSkipVerify,
	}

	if len(c.Cluster.CAFile) == 0 {
		return opts, nil
	}

	pem, err := os.ReadFile(c.Cluster.CAFile)
	if err != nil {
		return opts, fmt.Errorf("failed to read cluster CA file: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return opts, fmt.Errorf("no certificates found in %s", c.Cluster.CAFile)
	}

	opts.RootCAs = pool

	return opts, nil
}
