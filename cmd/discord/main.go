package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/discord"
	"github.com/keshon/domme-music/internal/logging"
	"github.com/keshon/domme-music/internal/storage"
)

func main() {
	envFile := flag.String("env-file", ".env", "path to an optional .env file")
	logLevel := flag.String("log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	flag.Parse()

	if err := run(*envFile, *logLevel); err != nil {
		log.Error().Err(err).Msg("music bot stopped")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(envFile, logLevel string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, closer := logging.Setup(logging.Options{
		Level: cfg.LogLevel,
		Debug: cfg.Debug,
		File:  cfg.LogFile,
	})
	defer closer.Close()

	logger.Info().Str("node", cfg.LavalinkHost).Int("port", cfg.LavalinkPort).Msg("starting music bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(cfg.StoragePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	bot := discord.New(cfg, store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		err = <-errCh
	case err = <-errCh:
		cancel()
	}
	if err != nil {
		return err
	}

	logger.Info().Msg("music bot exited cleanly")
	return nil
}
