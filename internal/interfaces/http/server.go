// Package http implements the read-only dashboard surface: a gin server
// exposing the LoopRegistry and per-loop diagnostics for inspection. It
// never mutates a loop; all control happens through the CLI.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hatloop/hatloop/internal/diagnostics"
	"github.com/hatloop/hatloop/internal/index"
	"github.com/hatloop/hatloop/pkg/safego"
)

// Config controls where the dashboard listens and in which gin mode.
type Config struct {
	Addr    string
	Mode    string // debug, release
	AppDir  string // app-dir path used to locate each loop's diagnostics
}

// Server is the dashboard's HTTP front end.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer builds a dashboard server reading loop state from db (the
// RegistryIndex).
func NewServer(cfg Config, db *gorm.DB, logger *zap.Logger) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	setupRoutes(router, db, cfg.AppDir)

	return &Server{
		server: &http.Server{Addr: cfg.Addr, Handler: router},
		logger: logger,
	}
}

// Start serves the dashboard in the background; it returns immediately.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting dashboard server", zap.String("address", s.server.Addr))
	safego.Go(s.logger, "dashboard-http-server", func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("dashboard server error", zap.Error(err))
		}
	})
	return nil
}

// Stop gracefully shuts the dashboard server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping dashboard server")
	return s.server.Shutdown(ctx)
}

func setupRoutes(router *gin.Engine, db *gorm.DB, appDir string) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/loops", func(c *gin.Context) {
			rows, err := index.Query(db, c.Query("status"), c.Query("workspace"))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"loops": rows})
		})

		v1.GET("/loops/:id", func(c *gin.Context) {
			rows, err := index.Query(db, "", "")
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			for _, row := range rows {
				if row.LoopID == c.Param("id") {
					c.JSON(http.StatusOK, row)
					return
				}
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "loop not found"})
		})

		v1.GET("/diagnostics/:id/tail", func(c *gin.Context) {
			records, err := diagnostics.Tail(appDir, c.Param("id"))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"records": records})
		})
	}
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
