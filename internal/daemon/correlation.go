package daemon

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	CorrelationHeader = "X-Correlation-ID"

	// correlationIDKey is the context key used to store the correlation ID
	correlationIDKey = "correlation_id"
)

// CorrelationMiddleware reuses an incoming X-Correlation-ID or generates a
// new one, stores it on the context and echoes it in the response.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationHeader)

		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(correlationIDKey, correlationID)
		c.Header(CorrelationHeader, correlationID)

		c.Next()
	}
}

// GetCorrelationID returns an empty string if no correlation ID is found.
func GetCorrelationID(c *gin.Context) string {
	if id, exists := c.Get(correlationIDKey); exists {
		if strID, ok := id.(string); ok {
			return strID
		}
	}
	return ""
}

// LogWithCorrelation creates a logrus entry with the correlation ID included.
func LogWithCorrelation(c *gin.Context) *logrus.Entry {
	return logrus.WithField(correlationIDKey, GetCorrelationID(c))
}

// RequestLogger logs one line per request through logrus in place of
// gin's own writer.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := LogWithCorrelation(c).WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})

		if len(c.FullPath()) == 0 {
			entry = entry.WithField("path", c.Request.URL.Path)
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Errorln("Request failed")
		default:
			entry.Debugln("Request served")
		}
	}
}
