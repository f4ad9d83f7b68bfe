// Package server exposes the Engram service over HTTP/JSON.
//
// All routes live under /v1. When an API key is configured, every request
// must carry it in the X-API-Key header. Errors are returned as
// {"error": "..."} with a status code mapped from the service error.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/engramlabs/engram-go/pkg/core"
)

// Server wraps the Engram service with an HTTP API.
type Server struct {
	service *core.Service
	config  *core.ServerConfig
	log     *logrus.Logger
	engine  *gin.Engine
}

// New creates a server around a service. A nil logger selects the standard
// logrus logger.
func New(service *core.Service, config *core.ServerConfig, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		service: service,
		config:  config,
		log:     log,
		engine:  engine,
	}
	s.registerRoutes()

	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server on the configured address and blocks.
func (s *Server) Run() error {
	addr := s.config.Addr
	if addr == "" {
		addr = "127.0.0.1:7700"
	}
	s.log.WithField("addr", addr).Info("engram server listening")
	return s.engine.Run(addr)
}

// registerRoutes wires the /v1 route tree.
func (s *Server) registerRoutes() {
	s.engine.Use(s.requestLogger())

	v1 := s.engine.Group("/v1")
	if s.config.APIKey != "" {
		v1.Use(s.requireAPIKey())
	}

	v1.POST("/memory/store", s.handleStore)
	v1.POST("/memory/search", s.handleSearch)
	v1.POST("/memory/context", s.handleContext)
	v1.POST("/memory/supersede", s.handleSupersede)
	v1.GET("/memory/:id", s.handleGetMemory)
	v1.DELETE("/memory/:id", s.handleDeleteMemory)

	v1.POST("/extract", s.handleExtract)

	v1.POST("/graph/entities", s.handleUpsertEntity)
	v1.POST("/graph/entities/search", s.handleSearchEntities)
	v1.GET("/graph/entities/:id", s.handleEntityProfile)
	v1.POST("/graph/relationships", s.handleAddRelationship)

	v1.POST("/wisdom/log", s.handleLogWisdom)
	v1.POST("/wisdom/:id/outcome", s.handleRecordOutcome)
	v1.POST("/wisdom/:id/feedback", s.handleAttachFeedback)
	v1.POST("/wisdom/search", s.handleSearchWisdom)

	v1.GET("/health", s.handleHealth)
	v1.GET("/stats", s.handleStats)
}

// requireAPIKey rejects requests without the configured X-API-Key.
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-API-Key") != s.config.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

// requestLogger logs one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(started).String(),
		}).Info("request")
	}
}

// writeError maps a service error onto an HTTP status and JSON body.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrAlreadySuperseded):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
