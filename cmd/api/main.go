package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_listing/internal/adapters/auth"
	server "hotel_listing/internal/adapters/http_server"
	"hotel_listing/internal/adapters/observability"
	redisad "hotel_listing/internal/adapters/redis"
	"hotel_listing/internal/app"
	"hotel_listing/internal/domain"
	"hotel_listing/internal/shared"
	"hotel_listing/internal/storage/memory"
	mysqlrepo "hotel_listing/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	metricsSrv := observability.Serve(cfg.MetricsAddr, reg)

	// storage
	var (
		listings domain.ListingRepository
		rooms    domain.RoomRepository
	)
	switch cfg.Storage {
	case shared.StorageMemory:
		st := memory.New()
		listings, rooms = st, st
		log.Warn().Msg("using in-memory storage; data is lost on restart")
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		repo := mysqlrepo.New(db)
		listings, rooms = repo, repo
	}

	// cache stays an untyped nil when redis is not configured
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed; cache errors will be logged")
		}
		cache = rc
	} else {
		log.Info().Msg("REDIS_ADDR empty, caching disabled")
	}

	// services
	engine := app.NewLifecycleEngine(listings, cache)
	paging := app.Paging{DefaultSize: cfg.DefaultPageSize, MaxSize: cfg.MaxPageSize}
	h := &server.Handlers{
		Q: app.NewQueryService(listings, rooms, cache, cfg.CacheTTL, paging),
		L: app.NewListingService(listings, cache, engine),
		R: app.NewRoomService(listings, rooms, cache),
	}

	// http
	srv := server.New(auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer), server.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.Storage).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}
