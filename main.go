// main.go
//
// Process entry point.
// Responsibilities:
//   - Load .env and configure zerolog.
//   - Load the word list.
//   - Open the optional SQLite archive and the optional Kafka producer.
//   - Wire registry, hub, recorder and HTTP server together.
//   - Serve until SIGINT/SIGTERM, then drain.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/grab-game/internal/archive"
	"github.com/grab-game/internal/events"
	"github.com/grab-game/internal/game"
	"github.com/grab-game/internal/httpserver"
	"github.com/grab-game/internal/registry"
	"github.com/grab-game/internal/words"
	"github.com/grab-game/internal/ws"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	dict, err := words.Load(os.Getenv("WORD_LIST"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word list")
	}
	log.Info().Str("list", dict.Name()).Int("words", dict.Len()).Msg("word list loaded")

	// Optional game archive. Without it the server runs memory-only and
	// the leaderboard endpoint reports unavailable.
	var arch *archive.Store
	if dsn := os.Getenv("ARCHIVE_DB_PATH"); dsn != "" {
		db, err := archive.Open(dsn)
		if err != nil {
			log.Fatal().Err(err).Str("path", dsn).Msg("failed to open archive db")
		}
		defer db.Close()
		arch = archive.New(db)
		log.Info().Str("path", dsn).Msg("archive db open")
	} else {
		log.Info().Msg("no ARCHIVE_DB_PATH, running memory-only")
	}

	producer := events.NewProducer()
	defer producer.Close()
	recorder := events.NewRecorder(producer, arch)

	reg := registry.New(registry.Config{
		Dict:       dict,
		MinPlayers: envInt("MIN_PLAYERS", 2),
		Grace:      time.Duration(envInt("DISCONNECT_GRACE_SECONDS", 600)) * time.Second,
	})
	hub := ws.NewHub(reg)
	reg.SetSink(game.Tee{hub, recorder})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	go recorder.Run(ctx)
	go reg.Run(ctx, time.Duration(envInt("TICK_INTERVAL_MS", 250))*time.Millisecond)

	srv := httpserver.New(reg, arch, hub)
	port := getEnv("PORT", "8080")
	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("starting grab server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
