// Package web serves the read-only status API next to the NNTP ports.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"github.com/go-while/go-mcnttp/internal/config"
	"github.com/go-while/go-mcnttp/internal/database"
	"github.com/go-while/go-mcnttp/internal/nntp"
)

// StatusServer exposes server health, statistics and the catalog list
// over HTTP for operators and monitoring.
type StatusServer struct {
	cfg    *config.MainConfig
	store  database.Store
	stats  *nntp.ServerStats
	engine *gin.Engine
	srv    *http.Server
}

// NewStatusServer wires the routes. Returns nil when the status API is
// disabled by configuration.
func NewStatusServer(cfg *config.MainConfig, store database.Store, stats *nntp.ServerStats) *StatusServer {
	if cfg.Web.ListenPort <= 0 {
		return nil
	}
	if !cfg.Web.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(secure.New(secure.Config{
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		FrameDeny:          true,
	}))

	s := &StatusServer{
		cfg:    cfg,
		store:  store,
		stats:  stats,
		engine: engine,
	}

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/groups", s.handleGroups)
	return s
}

// Start runs the HTTP listener in a background goroutine.
func (s *StatusServer) Start() error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Web.ListenPort),
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.Printf("Status API listening on port %d", s.cfg.Web.ListenPort)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Status API error: %v", err)
		}
	}()
	return nil
}

// Shutdown stops the HTTP listener.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": config.AppVersion,
	})
}

func (s *StatusServer) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot())
}

func (s *StatusServer) handleGroups(c *gin.Context) {
	pattern := c.Query("wildmat")
	groups, err := s.store.ListCatalogs(pattern)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	type row struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		Status       string `json:"status"`
		MessageCount int64  `json:"message_count"`
		LowWater     int64  `json:"low_water"`
		HighWater    int64  `json:"high_water"`
	}
	out := make([]row, len(groups))
	for i, g := range groups {
		out[i] = row{
			Name:         g.Name,
			Description:  g.Description,
			Status:       g.Status(),
			MessageCount: g.MessageCount,
			LowWater:     g.LowWater,
			HighWater:    g.HighWater,
		}
	}
	c.JSON(http.StatusOK, out)
}
