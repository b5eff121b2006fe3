package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

func DefaultConfig() *Config {

	v := viper.New()

	// Set default values
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("error unmarshaling default config: %v", err)
	}

	config.logs = NewLogBuffer(defaultLogBufferSize)

	return &config
}

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	if err := setupViperConfig(v, configFile); err != nil {
		return nil, err
	}

	bindEnvironmentVariables(v)

	config, err := readAndUnmarshalConfig(v)
	if err != nil {
		return nil, err
	}

	if err := setupLogging(config, v); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnvFile loads the .env file if it exists
func loadEnvFile() error {
	if err := gotenv.Load(); err != nil {
		// .env file not found, that's okay - continue with other sources
		if !os.IsNotExist(err) {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}
	return nil
}

// setupViperConfig configures viper with file paths and defaults
func setupViperConfig(v *viper.Viper, configFile string) error {
	// Set configuration file details
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/relay")

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)
	}

	setupHomeConfigPath(v)

	// Set default values
	setDefaults(v)

	// Set environment variable settings
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	return nil
}

// setupHomeConfigPath adds ~/.config/relay when a home directory is known
func setupHomeConfigPath(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil || len(home) == 0 {
		return
	}

	v.AddConfigPath(filepath.Join(home, ".config", "relay"))
}

// bindEnvironmentVariables binds the variables AutomaticEnv cannot derive
// from a key, mainly the cluster file names so a container can be configured
// with the same variables it would put in the file.
func bindEnvironmentVariables(v *viper.Viper) {

	// Cluster environment variables
	v.BindEnv("cluster.host", "RELAY_CLUSTER_HOST", ClusterKeyHost)
	v.BindEnv("cluster.username", "RELAY_CLUSTER_USERNAME", ClusterKeyUsername)
	v.BindEnv("cluster.password", "RELAY_CLUSTER_PASSWORD", ClusterKeyPassword)
	v.BindEnv("cluster.secret", "RELAY_CLUSTER_SECRET", ClusterKeySecret)

	// HashiCorp Vault environment variables
	v.BindEnv("secrets.vault.address", "RELAY_SECRETS_VAULT_ADDRESS", "VAULT_ADDR")
	v.BindEnv("secrets.vault.token", "RELAY_SECRETS_VAULT_TOKEN", "VAULT_TOKEN")
	v.BindEnv("secrets.vault.namespace", "RELAY_SECRETS_VAULT_NAMESPACE", "VAULT_NAMESPACE")

	// AWS environment variables
	v.BindEnv("secrets.aws.region", "RELAY_SECRETS_AWS_REGION", "AWS_REGION")
	v.BindEnv("secrets.aws.profile", "RELAY_SECRETS_AWS_PROFILE", "AWS_PROFILE")

	// Logging
	v.BindEnv("logging.level", "RELAY_LOGGING_LEVEL")
	v.BindEnv("logging.format", "RELAY_LOGGING_FORMAT")
	v.BindEnv("logging.output", "RELAY_LOGGING_OUTPUT")
}

// readAndUnmarshalConfig reads the configuration file and unmarshals it
func readAndUnmarshalConfig(v *viper.Viper) (*Config, error) {
	// Read configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.configFile = v.ConfigFileUsed()

	return &config, nil
}

// setupLogging configures the logging system based on the config
func setupLogging(config *Config, v *viper.Viper) error {
	// Set logging level
	logrusLevel, err := logrus.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}

	logrus.SetLevel(logrusLevel)
	config.logs = NewLogBuffer(defaultLogBufferSize)
	logrus.AddHook(config.logs)

	switch strings.ToLower(config.Logging.Output) {
	case "", "stdout":
		logrus.SetOutput(os.Stdout)
	case "stderr":
		logrus.SetOutput(os.Stderr)
	default:
		logrus.WithFields(logrus.Fields{
			"output": config.Logging.Output,
		}).Warn("Unknown log output")
	}

	// Set logging format
	switch strings.ToLower(config.Logging.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		logrus.WithFields(logrus.Fields{
			"format": config.Logging.Format,
		}).Warn("Unknown log format")
	}

	// Dump out the config settings if in debug mode, minus credentials
	if logrusLevel >= logrus.DebugLevel {
		for key, value := range v.AllSettings() {
			if key == "cluster" || key == "secrets" {
				continue
			}
			logrus.Debugf("Config '%s': %v\n", key, value)
		}
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)

	// Metrics defaults
	v.SetDefault("server.metrics.enabled", true)
	v.SetDefault("server.metrics.path", "/metrics")
	v.SetDefault("server.metrics.prometheus_path", "/metrics/prometheus")

	// Health defaults
	v.SetDefault("server.health.enabled", true)
	v.SetDefault("server.health.path", "/health")

	// Ready defaults
	v.SetDefault("server.ready.enabled", true)
	v.SetDefault("server.ready.path", "/ready")

	// Recent log entries, off by default since they name users
	v.SetDefault("server.logs.enabled", false)
	v.SetDefault("server.logs.path", "/logs")

	// Security defaults. Browsers embedding the cluster call the relay
	// directly, so any origin is allowed unless narrowed here.
	v.SetDefault("server.security.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.security.cors.allowed_methods", []string{"GET", "HEAD", "OPTIONS"})
	v.SetDefault("server.security.cors.max_age", 86400)

	// Server limits
	v.SetDefault("server.limits.read_timeout", "30s")
	v.SetDefault("server.limits.write_timeout", "60s")
	v.SetDefault("server.limits.idle_timeout", "120s")

	// Cluster defaults
	v.SetDefault("cluster.file", DefaultClusterFile)
	v.SetDefault("cluster.timeout", "30s")
	v.SetDefault("cluster.insecure_skip_verify", false)
	v.SetDefault("cluster.reload_on_request", false)

	// Secret backends
	v.SetDefault("secrets.aws.region", "us-east-1")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}
