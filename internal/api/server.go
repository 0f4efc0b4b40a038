// Package api exposes the engine over HTTP (gin) and a websocket snapshot feed.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/udisondev/survivalskills/internal/command"
	"github.com/udisondev/survivalskills/internal/engine"
)

// Config configures the HTTP surface.
type Config struct {
	// bcrypt hash of the admin bearer token; empty disables /api/admin
	AdminTokenHash string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// Server is the HTTP + websocket front of one engine.
type Server struct {
	eng      *engine.Engine
	cmds     *command.Handler
	hub      *Hub
	cfg      Config
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the router and installs the hub as the engine's notifier.
// cmds may be nil, disabling the command route.
func New(eng *engine.Engine, cmds *command.Handler, cfg Config) *Server {
	s := &Server{
		eng:  eng,
		cmds: cmds,
		hub:  NewHub(eng, cfg.WriteTimeout, cfg.PingInterval),
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	eng.SetNotifier(s.hub)
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the snapshot feed.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", s.handleFeed)

	api := r.Group("/api")
	{
		api.GET("/skills", s.listSkills)
		api.GET("/skills/:skill", s.getSkill)

		player := api.Group("/players/:id")
		{
			player.GET("", s.getSnapshot)
			player.POST("/unlock", s.unlock)
			player.POST("/respec", s.respec)
			player.POST("/xp", s.addXP)
			player.POST("/activate", s.activate)
			player.POST("/damage", s.damage)
			player.POST("/gather", s.gather)
			player.POST("/mitigate", s.mitigate)
			player.POST("/survival", s.survival)
			player.POST("/command", s.runCommand)
		}

		admin := api.Group("/admin", adminAuth(s.cfg.AdminTokenHash))
		{
			admin.POST("/cycle", s.newCycle)
			admin.POST("/command", s.runAdminCommand)
			admin.POST("/players/:id/points", s.grantPoints)
			admin.POST("/players/:id/forceunlock", s.forceUnlock)
			admin.POST("/players/:id/xprate", s.setXPRate)
			admin.POST("/players/:id/reset", s.resetPlayer)
			admin.DELETE("/players/:id/cooldowns/:ability", s.clearCooldown)
		}
	}
	return r
}

// Run serves on addr and drives the hub until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		s.hub.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http api: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http api shutdown: %w", err)
	}
	<-hubDone
	slog.Info("http api stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
