// Copyright 2026 The cortexd Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the daemon's processing and status endpoints over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/sentium/cortexd/internal/buildinfo"
	"github.com/sentium/cortexd/internal/core"
)

// ProcessRequest is the body of POST /v1/process.
type ProcessRequest struct {
	Observation string            `json:"observation" binding:"required"`
	Context     map[string]string `json:"context,omitempty"`
}

// ModeRequest is the body of the mode override endpoints.
type ModeRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Server wraps the gin engine and the processing core.
type Server struct {
	core   *core.Core
	engine *gin.Engine
	srv    *http.Server
}

// NewServer builds the HTTP surface over the core.
func NewServer(c *core.Core) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		core:   c,
		engine: engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealthz)

	v1 := s.engine.Group("/v1")
	v1.POST("/process", s.handleProcess)
	v1.GET("/status", s.handleStatus)
	v1.POST("/mode/fallback", s.handleForceFallback)
	v1.POST("/mode/primary", s.handleForcePrimary)
	v1.DELETE("/mode", s.handleReleaseMode)
}

// Engine exposes the underlying gin engine, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

func (s *Server) handleProcess(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	resp := s.core.Process(c.Request.Context(), req.Observation, req.Context)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.core.Status())
}

func (s *Server) handleForceFallback(c *gin.Context) {
	var req ModeRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual override via API"
	}

	if err := s.core.ForceFallback(c.Request.Context(), req.Reason); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": "fallback", "forced": true})
}

func (s *Server) handleForcePrimary(c *gin.Context) {
	var req ModeRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual override via API"
	}

	if err := s.core.ForcePrimary(c.Request.Context(), req.Reason); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": "primary", "forced": true})
}

func (s *Server) handleReleaseMode(c *gin.Context) {
	released := s.core.ReleaseMode(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"mode": string(released), "forced": false})
}

// Start begins serving on addr. Blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("API server listening on %s", addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
