// Package server exposes the register pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/pipeline"
)

// Generator is the piece of the pipeline the server needs
type Generator interface {
	Generate(ctx context.Context, query string) (*model.Register, error)
}

// Server wraps the pipeline behind a small JSON API
type Server struct {
	generator Generator
	cfg       model.ServerConfig
	logger    *zap.Logger
	engine    *gin.Engine
}

// New creates the HTTP server
func New(generator Generator, cfg model.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{generator: generator, cfg: cfg, logger: logger, engine: engine}
	engine.GET("/health", s.handleHealth)
	engine.POST("/v1/register", s.handleRegister)
	return s
}

// Handler returns the underlying http handler, for tests and custom servers
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.cfg.RequestTimeout,
	}
	s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
	return srv.ListenAndServe()
}

type registerRequest struct {
	Query string `json:"query" binding:"required"`
}

type registerResponse struct {
	Answer   string                 `json:"answer"`
	Register *model.Register        `json:"register"`
	Metadata model.RegisterMetadata `json:"metadata"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	ctx := c.Request.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	register, err := s.generator.Generate(ctx, req.Query)
	if err != nil {
		s.logger.Error("register generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register generation failed"})
		return
	}

	if blocked(register) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "request blocked by trust validation",
			"detail": register.Errors,
		})
		return
	}

	c.JSON(http.StatusOK, registerResponse{
		Answer:   pipeline.RenderMarkdown(register),
		Register: register,
		Metadata: register.Metadata,
	})
}

// blocked reports whether the register is the empty output of a trust block
func blocked(register *model.Register) bool {
	if len(register.Obligations) > 0 {
		return false
	}
	for _, e := range register.Errors {
		if strings.HasPrefix(e, "BLOCKED") {
			return true
		}
	}
	return false
}
