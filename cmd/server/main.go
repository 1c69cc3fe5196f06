package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chat-relay/internal/auth"
	"chat-relay/internal/bus"
	"chat-relay/internal/config"
	"chat-relay/internal/database"
	"chat-relay/internal/ops"
	"chat-relay/internal/registry"
	"chat-relay/internal/server"
	"chat-relay/internal/transport"
)

// defaultAccounts are seeded on first start against an empty store.
var defaultAccounts = map[string]string{
	"alice":   "password123",
	"bob":     "secret456",
	"charlie": "hello789",
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting chat relay")

	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	creds, err := buildCredentialStore(cfg, redisClient)
	if err != nil {
		slog.Error("Failed to initialize credential store", "error", err)
		os.Exit(1)
	}

	// Seeding failure means the shared store is unusable; refuse to serve.
	ctx := context.Background()
	if err := creds.Seed(ctx, defaultAccounts); err != nil {
		slog.Error("Failed to seed user database", "error", err)
		os.Exit(1)
	}

	reg := registry.NewRedisRegistry(redisClient)

	eventBus, err := buildBus(cfg, redisClient)
	if err != nil {
		slog.Error("Failed to initialize bus", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	authSvc := auth.NewService(creds, reg, eventBus, cfg.Server.GraceInterval)
	srv := server.New(authSvc, reg, eventBus)

	if err := srv.StartRelay(); err != nil {
		slog.Error("Failed to start bus relay", "error", err)
		os.Exit(1)
	}

	ln, err := transport.ListenTLS(cfg.Server.ListenAddr(), cfg.Server.CertFile, cfg.Server.KeyFile)
	if err != nil {
		slog.Error("Failed to start TLS listener", "error", err)
		os.Exit(1)
	}
	go srv.Serve(ln)
	slog.Info("Server listening", "addr", cfg.Server.ListenAddr(), "tls", true)

	if cfg.Server.WSAddr != "" {
		if _, err := transport.ListenWebSocket(cfg.Server.WSAddr, srv.Handle); err != nil {
			slog.Error("Failed to start WebSocket listener", "error", err)
			os.Exit(1)
		}
		slog.Info("WebSocket listener started", "addr", cfg.Server.WSAddr)
	}

	opsCtx, opsCancel := context.WithCancel(context.Background())
	defer opsCancel()
	if cfg.Ops.Addr != "" {
		opsServer := ops.NewServer(creds, reg, redisClient, cfg.JWT)
		go opsServer.Run(opsCtx, cfg.Ops.Addr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")
	opsCancel()
	srv.Stop()
	ln.Close()
	slog.Info("Server stopped")
}

func buildCredentialStore(cfg *config.Config, redisClient *database.RedisClient) (auth.CredentialStore, error) {
	switch cfg.Credentials.Backend {
	case "mysql":
		db, err := database.NewMySQLDB(cfg.Credentials.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return auth.NewMySQLCredentials(db)
	default:
		return auth.NewRedisCredentials(redisClient), nil
	}
}

func buildBus(cfg *config.Config, redisClient *database.RedisClient) (bus.Bus, error) {
	switch cfg.Bus.Backend {
	case "kafka":
		return bus.NewKafkaBus(cfg.Bus.KafkaBrokers)
	default:
		return bus.NewRedisBus(redisClient), nil
	}
}
