// Package daemon is the HTTP front door of the relay: it serves tokens to
// browsers embedding the cluster, plus health, readiness and metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/common"
	"github.com/thand-io/relay/internal/config"
	"github.com/thand-io/relay/internal/models"
)

func NewServer(cfg *config.Config, brokers *BrokerProvider) *Server {
	return &Server{
		Config:    cfg,
		Brokers:   brokers,
		StartTime: time.Now().UTC(),
	}
}

// Server represents the web service that hands out tokens
type Server struct {
	Config    *config.Config
	Brokers   *BrokerProvider
	StartTime time.Time

	TotalRequests atomic.Int64
	TokenRequests atomic.Int64
	TokensIssued  atomic.Int64
	TokenFailures atomic.Int64

	server *http.Server
}

func (s *Server) GetVersion() string {
	return common.GetVersion()
}

// Router builds the gin engine with every middleware and route installed.
func (s *Server) Router() *gin.Engine {

	router := gin.New()

	router.Use(CorrelationMiddleware())
	router.Use(RequestLogger())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		LogWithCorrelation(c).WithField("panic", recovered).Error("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Message: "Internal Server Error",
		})
	}))
	router.Use(s.requestCounterMiddleware())
	router.Use(CORSMiddleware(s.Config.Server.Security.CORS))

	s.setupRoutes(router)

	return router
}

// Start initializes and starts the web service
func (s *Server) Start() error {
	// Set Gin mode based on configuration
	if logrus.GetLevel() >= logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := s.Router()

	addr := s.Config.ListenAddress()

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.Config.Server.Limits.ReadTimeout,
		WriteTimeout: s.Config.Server.Limits.WriteTimeout,
		IdleTimeout:  s.Config.Server.Limits.IdleTimeout,
	}

	// Store server reference for shutdown
	s.server = server

	// Channel to capture startup errors
	errChan := make(chan error, 1)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait a moment to see if the server fails to start
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start server: %w", err)
	case <-time.After(100 * time.Millisecond):
		logrus.WithField("address", addr).Infoln("Token relay listening")
		return nil
	}
}

// Stop drains in-flight requests, waiting at most until ctx is done.
func (s *Server) Stop(ctx context.Context) error {

	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logrus.Infoln("Token relay stopped")

	return nil
}

// requestCounterMiddleware increments the request counter
func (s *Server) requestCounterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.TotalRequests.Add(1)
		c.Next()
	}
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes(router *gin.Engine) {

	// Health endpoint
	if s.Config.Server.Health.Enabled {
		router.GET(s.Config.Server.Health.Path, s.healthHandler)
	}

	// Ready endpoint
	if s.Config.Server.Ready.Enabled {
		router.GET(s.Config.Server.Ready.Path, s.readyHandler)
	}

	// Metrics endpoint
	if s.Config.Server.Metrics.Enabled {
		router.GET(s.Config.Server.Metrics.Path, s.metricsHandler)

		if path := s.Config.Server.Metrics.PrometheusPath; len(path) > 0 {
			router.GET(path, gin.WrapH(s.prometheusHandler()))
		}
	}

	if s.Config.Server.Logs.Enabled {
		router.GET(s.Config.Server.Logs.Path, s.logsHandler)
	}

	router.GET("/", s.usageHandler)

	router.GET("/gettoken/:username", s.getTokenHandler)

	router.NoRoute(s.usageHandler)
}

// healthHandler reports whether the cluster configuration is usable and
// whether an administrator session is currently held. A relay that has
// not logged in yet is still healthy; logins are lazy.
func (s *Server) healthHandler(c *gin.Context) {

	response := models.HealthResponse{
		Status:    models.HealthStatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.GetVersion(),
	}

	binding, err := s.Brokers.Get(c.Request.Context())

	if err != nil {
		LogWithCorrelation(c).WithError(err).Warnln("Cluster configuration unavailable")
		response.Status = models.HealthStatusUnhealthy
		response.Error = "cluster configuration unavailable"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Cluster = binding.Config.Host
	response.Authenticated = binding.Manager.IsAuthenticated()

	_, failures := binding.Manager.Stats()
	if !response.Authenticated && failures > 0 {
		response.Status = models.HealthStatusDegraded
	}

	c.JSON(http.StatusOK, response)
}

// readyHandler handles the readiness check endpoint
func (s *Server) readyHandler(c *gin.Context) {

	status := http.StatusOK
	ready := "ready"

	if _, err := s.Brokers.Get(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		ready = "not ready"
	}

	c.JSON(status, gin.H{
		"status":    ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.GetVersion(),
	})
}

// metricsHandler handles the metrics endpoint
func (s *Server) metricsHandler(c *gin.Context) {

	logins, loginFailures, rebuilds := s.Brokers.Stats()

	c.JSON(http.StatusOK, models.MetricsInfo{
		Uptime:          time.Since(s.StartTime).String(),
		TotalRequests:   s.TotalRequests.Load(),
		TokenRequests:   s.TokenRequests.Load(),
		TokensIssued:    s.TokensIssued.Load(),
		TokenFailures:   s.TokenFailures.Load(),
		Logins:          logins,
		LoginFailures:   loginFailures,
		ManagerRebuilds: rebuilds,
	})
}

// logsHandler returns recent warnings and errors, newest last.
// ?limit=N keeps the newest N, ?level=error narrows by level.
func (s *Server) logsHandler(c *gin.Context) {

	buffer := s.Config.Logs()
	if buffer == nil {
		c.JSON(http.StatusOK, []*models.LogEntry{})
		return
	}

	filter := config.LogFilter{Limit: 100}

	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	if level := c.Query("level"); len(level) > 0 {
		parsed, err := logrus.ParseLevel(strings.ToLower(level))
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Message: fmt.Sprintf("Unknown log level %q.", level),
			})
			return
		}
		filter.Levels = []logrus.Level{parsed}
	}

	c.JSON(http.StatusOK, buffer.GetEventsWithFilter(filter))
}
