package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"prism-board/api"
	"prism-board/board"
	"prism-board/config"
	"prism-board/storage"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load(os.Getenv("BOARD_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	logger.SetLevel(log.GetLevel())

	var rc *redis.Client
	var deduper api.Deduper
	if cfg.Redis.ConnectionString != "" {
		redisOpts, err := config.RedisOptions(cfg.Redis.ConnectionString)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc = redis.NewClient(redisOpts)
		deduper = api.NewRedisDeduper(rc, cfg.Redis.DeduperTTL)
	} else {
		log.Warn("missing redis config; move deduplication and task caching disabled")
	}

	auth := newAuth(cfg)

	sessions := api.NewSessions(func(userID string, creds storage.Credentials) board.Backend {
		client := storage.New(cfg.TasksAPI.URL, creds, cfg.TasksAPI.Timeout)
		return storage.NewCache(client, rc, cfg.Redis.TasksCacheTTL, userID)
	}, cfg.Sync.Concurrency, cfg.Sessions.IdleTTL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessions.Run(ctx, sweepInterval)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderContentEncoding, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(api.GzipRequestMiddleware())
	api.Register(e, sessions, auth, deduper, logger)
	// Closing sessions ends open board streams so Shutdown is not held by them.
	e.Server.RegisterOnShutdown(sessions.CloseAll)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	logger.Infof("board service listening on :%s, tasks api: %s, auth: %s", cfg.Port, cfg.TasksAPI.URL, cfg.Auth.Mode)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	sessions.CloseAll()
	if rc != nil {
		_ = rc.Close()
	}
}

func newAuth(cfg *config.Config) *api.Auth {
	var (
		auth *api.Auth
		err  error
	)
	switch cfg.Auth.Mode {
	case config.AuthJWKS:
		jwks, jerr := keyfunc.Get(cfg.JWKSURL(), keyfunc.Options{RefreshInterval: time.Hour})
		if jerr != nil {
			log.Fatalf("jwks: %v", jerr)
		}
		auth, err = api.NewAuth(cfg.Auth.Mode, jwks, cfg.Auth.Audience, cfg.Issuer(), nil)
	case config.AuthHS256:
		issuer := ""
		if cfg.Auth.Domain != "" {
			issuer = cfg.Issuer()
		}
		auth, err = api.NewAuth(cfg.Auth.Mode, nil, cfg.Auth.Audience, issuer, []byte(cfg.Auth.SharedSecret))
	default:
		log.Warn("bearer tokens are not verified locally; the task api must reject invalid tokens")
		auth, err = api.NewAuth(cfg.Auth.Mode, nil, "", "", nil)
	}
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	return auth
}
