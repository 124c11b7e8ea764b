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
	"github.com/rs/zerolog/log"

	"github.com/hongminglow/carepoint/internal/app"
	"github.com/hongminglow/carepoint/internal/config"
	"github.com/hongminglow/carepoint/internal/logging"
	"github.com/hongminglow/carepoint/internal/server"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Debug().Msg("no .env file found; relying on existing environment")
	}

	ctx := context.Background()
	core, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init portal")
	}
	defer core.Close()

	srv := server.New(core, logger)

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddress()).
			Str("backend", cfg.APIBaseURL).
			Str("credentials", cfg.CredentialBackend).
			Msg("carepoint portal listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}
