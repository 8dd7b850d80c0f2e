package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/polzovatel/web-research-agent/internal/agent"
	"github.com/polzovatel/web-research-agent/internal/browser"
	"github.com/polzovatel/web-research-agent/internal/config"
	"github.com/polzovatel/web-research-agent/internal/llm"
	"github.com/polzovatel/web-research-agent/internal/server"
	"github.com/polzovatel/web-research-agent/internal/store"
	"github.com/polzovatel/web-research-agent/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The reasoning service is optional: without a key every decision comes
	// from the deterministic paths.
	var oracle llm.Client
	if cfg.GeminiAPIKey != "" {
		oracle, err = llm.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, log.With().Str("comp", "llm").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("llm init")
		}
		log.Info().Str("model", oracle.Name()).Msg("reasoning service configured")
	} else {
		log.Warn().Msg("no reasoning key configured, deterministic planning only")
	}

	var workstreams *store.Workstreams
	if cfg.RedisAddr != "" {
		workstreams = store.NewWorkstreams(cfg.RedisAddr, log.With().Str("comp", "store").Logger())
		if err := workstreams.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, workstream persistence stays best-effort")
		}
	}

	newSurface := func() browser.Surface {
		return browser.NewSurface(cfg.Headless, log.With().Str("comp", "browser").Logger())
	}
	uc := usecase.NewBrowser(oracle, workstreams, newSurface, agent.Config{
		NavigationTimeout:    cfg.NavigationTimeout,
		CaptchaMaxWait:       cfg.CaptchaMaxWait,
		CaptchaCheckInterval: cfg.CaptchaCheckInterval,
	}, log.Logger)

	srv := server.New(uc, log.With().Str("comp", "server").Logger())
	httpServer := &http.Server{
		Addr:    cfg.Listen(),
		Handler: srv.Handler(),
	}

	go func() {
		log.Info().Str("addr", cfg.Listen()).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
