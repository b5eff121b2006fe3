package daemon

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/models"
)

// CORSMiddleware builds the gin-contrib/cors handler for the configured
// origins. A "*" entry allows every origin. Other entries are exact origins
// or patterns like "https://*.example.com".
func CORSMiddleware(cfg models.CORSConfig) gin.HandlerFunc {
	// Apply defaults for any unset values
	corsConfig := cfg.WithDefaults()

	config := cors.Config{
		AllowMethods:     corsConfig.AllowedMethods,
		AllowHeaders:     corsConfig.AllowedHeaders,
		ExposeHeaders:    append([]string{CorrelationHeader}, corsConfig.ExposeHeaders...),
		AllowCredentials: corsConfig.AllowCredentials,
		MaxAge:           time.Duration(corsConfig.MaxAge) * time.Second,
	}

	if corsConfig.AllowsAllOrigins() {
		config.AllowAllOrigins = true
	} else {
		patterns := corsConfig.AllowedOrigins
		config.AllowOriginFunc = func(origin string) bool {
			for _, pattern := range patterns {
				if matchOrigin(origin, pattern) {
					return true
				}
			}
			logrus.WithFields(logrus.Fields{
				"origin": origin,
			}).Debugln("CORS origin not allowed")
			return false
		}
	}

	logrus.WithFields(logrus.Fields{
		"allowedOrigins": corsConfig.AllowedOrigins,
	}).Debugln("CORS configuration")

	return cors.New(config)
}

// matchOrigin checks if the given origin matches the pattern
// Supports exact matches and wildcard patterns like "https://*.example.com"
func matchOrigin(origin, pattern string) bool {
	if origin == "" {
		return false
	}

	if origin == pattern || pattern == "*" {
		return true
	}

	if strings.Contains(pattern, "*") {
		return matchWildcardOrigin(origin, pattern)
	}

	return false
}

// matchWildcardOrigin matches scheme://*.domain.tld patterns. Nested
// subdomains match too.
func matchWildcardOrigin(origin, pattern string) bool {
	prefix, suffix, found := strings.Cut(pattern, "*")
	if !found {
		return false
	}

	// "https://*example.com" must not match "https://evilexample.com"
	if !strings.HasPrefix(suffix, ".") {
		return false
	}

	if !strings.HasPrefix(origin, prefix) || !strings.HasSuffix(origin, suffix) {
		return false
	}

	return len(origin) > len(prefix)+len(suffix)
}
