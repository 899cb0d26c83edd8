package main

import (
	"context"
	"errors"
	"net/http"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ibgw/gateway"
	"github.com/ibgw/gateway/config"
	"github.com/ibgw/gateway/httpapi"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	gw, err := gateway.New(
		gateway.WithUpstream(cfg.GatewayHost, cfg.GatewayPort),
		gateway.WithPoolSize(cfg.PoolSize),
		gateway.WithPollBudget(cfg.PollTimeoutIters),
		gateway.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct gateway")
	}
	gw.Start()

	addr := fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort)
	server := httpapi.NewServer(addr, gw, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("listening")
		serveErrCh <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received, draining in-flight requests")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("server shutdown did not complete cleanly")
		}
		gw.Close()
	}

	logger.Info().Msg("gateway stopped")
}
