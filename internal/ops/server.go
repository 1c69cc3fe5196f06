// Package ops exposes a small operator-facing HTTP API next to the chat
// listener: health, room and session listings.
package ops

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"chat-relay/internal/auth"
	"chat-relay/internal/config"
	"chat-relay/internal/registry"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	engine *gin.Engine
	creds  auth.CredentialStore
	reg    registry.Registry
	pinger Pinger
	jwtCfg config.JWTConfig
}

func NewServer(creds auth.CredentialStore, reg registry.Registry, pinger Pinger, jwtCfg config.JWTConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine: gin.New(),
		creds:  creds,
		reg:    reg,
		pinger: pinger,
		jwtCfg: jwtCfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", s.health)

	api := s.engine.Group("/api/v1")
	api.POST("/login", s.login)

	protected := api.Group("")
	protected.Use(JWTAuth(s.jwtCfg.Secret))
	protected.GET("/rooms", s.rooms)
	protected.GET("/sessions", s.sessions)
}

func (s *Server) Engine() http.Handler {
	return s.engine
}

// Run serves the ops API until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) {
	server := &http.Server{Addr: addr, Handler: s.engine}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("Ops API listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Ops API failed", "error", err)
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.pinger.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := s.creds.Lookup(c.Request.Context(), req.Username)
	if err != nil || hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": req.Username,
		"exp": time.Now().Add(s.jwtCfg.ExpirationTime).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString})
}

func (s *Server) rooms(c *gin.Context) {
	names, err := s.reg.RoomNames(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rooms := make(map[string][]string, len(names))
	for _, name := range names {
		members, err := s.reg.RoomMembers(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		rooms[name] = members
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (s *Server) sessions(c *gin.Context) {
	sessions, err := s.reg.Sessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
