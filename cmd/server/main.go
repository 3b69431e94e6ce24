package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Quoridor/internal/adapters/http"
	"github.com/dkeye/Quoridor/internal/app"
	"github.com/dkeye/Quoridor/internal/app/orch"
	"github.com/dkeye/Quoridor/internal/config"
	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	o := orch.New(ctx, orch.Deps{
		Registry: app.NewRegistry(st, cfg.SessionTTL),
		Rooms:    st,
		Chats:    st,
		Policy:   app.SimplePolicy{},
		Limiter:  app.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateInterval),
	}, orch.Options{
		RoomTTL:     cfg.RoomTTL,
		ChatTTL:     cfg.ChatTTL,
		ChatHistory: cfg.ChatHistory,
		RoomIdle:    cfg.RoomIdle,
	})

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Quoridor server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	o.Close()
	log.Info().Msg("Server exited gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	if cfg.RedisURL == "" {
		log.Warn().Str("module", "main").Msg("redis_url empty, rooms live in process memory")
		return store.NewMemory(), nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return store.NewRedis(pingCtx, store.RedisOptions{
		URL:             cfg.RedisURL,
		MaxRetries:      cfg.RedisMaxRetries,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})
}
