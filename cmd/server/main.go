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

	router "github.com/kaizenverse/liveclass/internal/adapters/http"
	wssignal "github.com/kaizenverse/liveclass/internal/adapters/signal"
	"github.com/kaizenverse/liveclass/internal/app"
	"github.com/kaizenverse/liveclass/internal/config"
	"github.com/kaizenverse/liveclass/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session store")
	}
	defer db.Close()

	writer := store.NewWriter(cfg.WriteQueue)
	reg := app.NewRegistry()
	coordinator := app.NewCoordinator(reg, db, writer)

	reaper := app.NewReaper(coordinator, cfg.ReaperInterval, cfg.ConnTimeout)
	go reaper.Run(ctx)

	ctl := wssignal.NewController(coordinator, cfg.ReadLimit, cfg.SendBuffer, cfg.PingPeriod)
	r := router.SetupRouter(ctx, cfg, coordinator, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("liveclass signaling server started")
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
	writer.Close()
	log.Info().Msg("Server exited gracefully")
}
