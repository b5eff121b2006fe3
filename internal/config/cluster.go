package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/subosito/gotenv"
	"github.com/thand-io/relay/internal/common"
	"github.com/thand-io/relay/internal/models"
	"github.com/thand-io/relay/internal/secrets"
)

const DefaultClusterFile = "gettoken.config"

// Keys understood in the cluster file. The older hyphenated spelling
// (ts-url, ts-username, ...) is accepted too.
const (
	ClusterKeyHost     = "TS_URL"
	ClusterKeyUsername = "TS_USERNAME"
	ClusterKeyPassword = "TS_PASSWORD"
	ClusterKeySecret   = "TS_SECRET"
)

// SecretResolver turns a configured value into the secret it refers to.
type SecretResolver interface {
	Resolve(ctx context.Context, value string) (string, error)
}

// ReadClusterFile parses a key=value cluster file. Blank lines and anything
// after a # are ignored.
func ReadClusterFile(path string) (map[string]string, error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	env, err := gotenv.StrictParse(strings.NewReader(normalizeClusterFile(string(data))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse cluster file %s: %w", path, err)
	}

	return env, nil
}

// normalizeClusterFile upper-cases hyphenated keys so gotenv accepts them,
// and single-quotes values containing $ so passwords are never expanded.
func normalizeClusterFile(content string) string {

	lines := strings.Split(content, "\n")

	for i, line := range lines {

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		if len(key) == 0 || strings.HasPrefix(key, "#") {
			continue
		}

		key = strings.ToUpper(strings.ReplaceAll(key, "-", "_"))

		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, `"`) || strings.HasPrefix(value, "'") {
			lines[i] = key + "=" + value
			continue
		}

		if comment := strings.Index(value, "#"); comment >= 0 {
			value = strings.TrimSpace(value[:comment])
		}

		if strings.Contains(value, "$") && !strings.Contains(value, "'") {
			value = "'" + value + "'"
		}

		lines[i] = key + "=" + value
	}

	return strings.Join(lines, "\n")
}

// WriteClusterFile writes the four cluster keys to path, readable by the
// owner only. Values that would otherwise be mangled are single-quoted.
func WriteClusterFile(path string, settings models.ClusterSettings) error {

	var b strings.Builder

	for _, entry := range []struct{ key, value string }{
		{ClusterKeyHost, settings.Host},
		{ClusterKeyUsername, settings.Username},
		{ClusterKeyPassword, settings.Password},
		{ClusterKeySecret, settings.Secret},
	} {
		value, err := quoteClusterValue(entry.value)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
		fmt.Fprintf(&b, "%s=%s\n", entry.key, value)
	}

	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func quoteClusterValue(value string) (string, error) {

	if strings.ContainsAny(value, "\r\n") {
		return "", errors.New("value must be a single line")
	}

	if !strings.ContainsAny(value, " \t#$\"'\\") {
		return value, nil
	}

	if strings.Contains(value, "'") {
		return "", errors.New("value containing a single quote must be written by hand")
	}

	return "'" + value + "'", nil
}

// ApplyClusterFile overlays values from the cluster file onto settings.
// Keys missing from the file keep their configured value.
func ApplyClusterFile(settings models.ClusterSettings, values map[string]string) models.ClusterSettings {

	if v, ok := values[ClusterKeyHost]; ok && len(v) > 0 {
		settings.Host = v
	}
	if v, ok := values[ClusterKeyUsername]; ok && len(v) > 0 {
		settings.Username = v
	}
	if v, ok := values[ClusterKeyPassword]; ok && len(v) > 0 {
		settings.Password = v
	}
	if v, ok := values[ClusterKeySecret]; ok && len(v) > 0 {
		settings.Secret = v
	}

	return settings
}

// LoadClusterConfig builds the cluster identity from the cluster section,
// the cluster file and any secret references, then validates it. It reads
// the file every time it is called.
func (c *Config) LoadClusterConfig(ctx context.Context, resolver SecretResolver) (models.ClusterConfig, error) {

	settings := c.Cluster

	if len(settings.File) > 0 {

		values, err := ReadClusterFile(settings.File)

		switch {
		case err == nil:
			settings = ApplyClusterFile(settings, values)
		case errors.Is(err, os.ErrNotExist):
			logrus.WithField("file", settings.File).Debugln("Cluster file not found, using configured values")
		default:
			return models.ClusterConfig{}, err
		}
	}

	if resolver == nil {
		resolver = secrets.NewResolver(c.Secrets)
	}

	password, err := resolver.Resolve(ctx, settings.Password)
	if err != nil {
		return models.ClusterConfig{}, fmt.Errorf("failed to resolve cluster password: %w", err)
	}

	secret, err := resolver.Resolve(ctx, settings.Secret)
	if err != nil {
		return models.ClusterConfig{}, fmt.Errorf("failed to resolve cluster secret: %w", err)
	}

	config := models.ClusterConfig{
		Host:     strings.TrimSpace(settings.Host),
		Username: strings.TrimSpace(settings.Username),
		Password: password,
		Secret:   secret,
	}

	if len(config.Host) > 0 {
		if common.IsInsecureScheme(config.Host) {
			logrus.WithField("host", config.Host).Warnln("Cluster host configured with http://, using https instead")
		}
		host, err := common.NormalizeClusterHost(config.Host)
		if err != nil {
			return models.ClusterConfig{}, err
		}
		config.Host = host
	}

	if err := config.Validate(); err != nil {
		return models.ClusterConfig{}, err
	}

	return config, nil
}
