package models

import "time"

type ServerConfig struct {
	Host     string             `mapstructure:"host"`
	Port     int                `mapstructure:"port"`
	Limits   ServerLimitsConfig `mapstructure:"limits"`
	Metrics  MetricsConfig      `mapstructure:"metrics"`
	Health   HealthConfig       `mapstructure:"health"`
	Ready    ReadyConfig        `mapstructure:"ready"`
	Logs     LogsConfig         `mapstructure:"logs"`
	Security SecurityConfig     `mapstructure:"security"`
}

type ServerLimitsConfig struct {
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ClusterSettings is the raw cluster section of the configuration. Values
// from the key=value cluster file override the ones set here, and Password
// and Secret may hold secret references (vault:..., awssm:...).
type ClusterSettings struct {
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Secret   string `mapstructure:"secret"`

	// File is the key=value credential file (TS_URL, TS_USERNAME, ...).
	File string `mapstructure:"file" default:"gettoken.config"`

	Timeout time.Duration `mapstructure:"timeout" default:"30s"`

	// InsecureSkipVerify disables TLS certificate verification against the
	// cluster. Only intended for clusters running self-signed certificates.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`

	// CAFile is a PEM bundle trusted in place of the system roots.
	CAFile string `mapstructure:"ca_file"`

	// ReloadOnRequest re-reads the cluster file on every token request and
	// rebuilds the session manager when the credentials change.
	ReloadOnRequest bool `mapstructure:"reload_on_request"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"text"`
	Output string `mapstructure:"output" default:"stdout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" default:"true"`
	Path    string `mapstructure:"path" default:"/metrics"`

	// PrometheusPath serves the same counters in the Prometheus text
	// format. Empty disables it.
	PrometheusPath string `mapstructure:"prometheus_path" default:"/metrics/prometheus"`
}

type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Don't use /healthz as it conflicts with google k8s health checks
	Path string `mapstructure:"path" default:"/health"`
}

type ReadyConfig struct {
	Enabled bool   `mapstructure:"enabled" default:"true"`
	Path    string `mapstructure:"path" default:"/ready"`
}

// LogsConfig exposes the most recent warnings and errors over HTTP.
type LogsConfig struct {
	Enabled bool   `mapstructure:"enabled" default:"false"`
	Path    string `mapstructure:"path" default:"/logs"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// WithDefaults returns a CORSConfig with default values applied for any unset fields
func (c CORSConfig) WithDefaults() CORSConfig {
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "HEAD", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{
			"Origin",
			"Content-Length",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Correlation-ID",
		}
	}
	if c.MaxAge == 0 {
		c.MaxAge = 86400 // 24 hours
	}
	return c
}

// AllowsAllOrigins reports whether the wildcard origin is configured.
func (c CORSConfig) AllowsAllOrigins() bool {
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

type VaultConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	// Namespace is only used by Vault Enterprise
	Namespace string `mapstructure:"namespace"`
}

type AWSSecretsConfig struct {
	Region          string `mapstructure:"region" default:"us-east-1"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint    string `mapstructure:"endpoint"`
	IMDSDisable bool   `mapstructure:"imds_disable"`
}

type SecretsConfig struct {
	Vault VaultConfig      `mapstructure:"vault"`
	AWS   AWSSecretsConfig `mapstructure:"aws"`
}
