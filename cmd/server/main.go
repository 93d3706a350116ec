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

	"meetpoint/internal/adapters/httpapi"
	"meetpoint/internal/app"
	"meetpoint/internal/config"
	"meetpoint/internal/relay"
	"meetpoint/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var meetingStore store.MeetingStore = store.Nop{}
	if cfg.Store.Enabled {
		rs, err := store.NewRedis(ctx, cfg.Store.Addr, cfg.Store.Password, cfg.Store.DB, cfg.Store.TTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to meeting store")
		}
		defer rs.Close()
		meetingStore = rs
		log.Info().Str("addr", cfg.Store.Addr).Msg("meeting store connected")
	}

	if cfg.Turn.Enabled {
		turn, err := relay.StartTurn(cfg.Turn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start TURN relay")
		}
		defer turn.Close()
	}

	coord := app.NewCoordinator(app.NewRegistry(), app.NewRoomTable(), meetingStore, cfg.Store.Timeout)

	r := httpapi.SetupRouter(ctx, cfg, coord)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("meetpoint coordinator started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
