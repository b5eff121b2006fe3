package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 5000, config.Server.Port)
	assert.Equal(t, "0.0.0.0:5000", config.ListenAddress())

	assert.Equal(t, DefaultClusterFile, config.Cluster.File)
	assert.Equal(t, 30*time.Second, config.Cluster.Timeout)
	assert.False(t, config.Cluster.InsecureSkipVerify)
	assert.False(t, config.Cluster.ReloadOnRequest)

	assert.Equal(t, []string{"*"}, config.Server.Security.CORS.AllowedOrigins)
	assert.True(t, config.Server.Health.Enabled)
	assert.Equal(t, "/health", config.Server.Health.Path)
	assert.False(t, config.Server.Logs.Enabled)

	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
	assert.NotNil(t, config.Logs())
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "config.yaml", `
server:
  port: 8080
cluster:
  host: analytics.example.com
  username: tsadmin
  timeout: 10s
  insecure_skip_verify: true
logging:
  level: debug
  format: json
`)

	t.Setenv("RELAY_SERVER_HOST", "127.0.0.1")
	t.Setenv("TS_PASSWORD", "from-environment")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, config.ConfigFile())
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)

	assert.Equal(t, "analytics.example.com", config.Cluster.Host)
	assert.Equal(t, "tsadmin", config.Cluster.Username)
	assert.Equal(t, "from-environment", config.Cluster.Password)
	assert.Equal(t, 10*time.Second, config.Cluster.Timeout)
	assert.True(t, config.Cluster.InsecureSkipVerify)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.NotNil(t, config.Logs())
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "logging:\n  level: chatty\n")

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestClusterOptions(t *testing.T) {
	config := DefaultConfig()
	config.Cluster.InsecureSkipVerify = true

	opts, err := config.ClusterOptions()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.True(t, opts.InsecureSkipVerify)
	assert.Nil(t, opts.RootCAs)

	config.Cluster.CAFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = config.ClusterOptions()
	assert.Error(t, err)

	config.Cluster.CAFile = writeFile(t, t.TempDir(), "bad.pem", "not a certificate")
	_, err = config.ClusterOptions()
	assert.Error(t, err)
}
