package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campuslive/campuslive/internal/api"
	"github.com/campuslive/campuslive/internal/config"
	"github.com/campuslive/campuslive/internal/db"
	"github.com/campuslive/campuslive/internal/middleware"
	"github.com/campuslive/campuslive/internal/observ"
	"github.com/campuslive/campuslive/internal/realtime"
	"github.com/campuslive/campuslive/internal/repository/postgres"
	redisrepo "github.com/campuslive/campuslive/internal/repository/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no parent request or deadline — Background() is the
	// right root. Once the server runs, each request carries its own
	// context.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	rdb, err := db.NewRedis(context.Background(), cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	pool := database.Pool()
	gateway := realtime.NewGateway(realtime.Deps{
		Messages:    postgres.NewMessageStore(pool),
		Presence:    redisrepo.NewPresenceStore(rdb),
		Memberships: postgres.NewMembershipStore(pool),
		Users:       postgres.NewUserStore(pool),
	}, cfg.DocSessionTTL, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	// Health check is PUBLIC — no auth required, load balancers hit it.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Everything else requires a verified JWT — including the websocket
	// handshake, which carries its token as a query parameter.
	messageHandler := api.NewMessageHandler(postgres.NewMessageStore(pool), logger)
	presenceHandler := api.NewPresenceHandler(gateway.Registry())
	wsHandler := api.NewWSHandler(gateway, nil, logger)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	v1.GET("/messages", messageHandler.List)
	v1.GET("/presence/online", presenceHandler.Online)
	v1.GET("/ws", wsHandler.Serve)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting CampusLive realtime server",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	// Drain order: stop accepting HTTP, then tear down live
	// connections (which flushes the final presence transitions).
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	gateway.Shutdown()

	return nil
}
