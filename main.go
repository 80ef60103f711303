package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/api"
	"smc-signal-engine/internal/app"
	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New(logging.Config{Level: "ERROR"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	logSignalEvents(a.EventBus, logger)

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(
			api.ServerConfigFromApp(cfg.ServerConfig),
			a.Scanner,
			a.Store,
			a.EventBus,
			a.JWT,
			a.Registry,
			logger,
		)
		for name, check := range a.HealthChecks() {
			server.AddHealthCheck(name, check)
		}

		go func() {
			if err := server.Start(); err != nil {
				logger.Fatal().Err(err).Msg("HTTP server failed")
			}
		}()
	}

	a.Scanner.Start()

	logger.Info().
		Str("store", cfg.SignalsConfig.Store).
		Bool("mock_mode", cfg.BinanceConfig.MockMode).
		Bool("auth", a.JWT != nil).
		Dur("scan_interval", cfg.ScannerConfig.ScanInterval).
		Msg("Signal engine started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error shutting down web server")
		}
	}
	a.Close()

	logger.Info().Msg("Shutdown complete")
}

// logSignalEvents writes signal lifecycle events to the log
func logSignalEvents(bus *events.EventBus, logger zerolog.Logger) {
	log := logging.WithComponent(logger, "events")
	bus.Subscribe(events.EventSignalGenerated, func(e events.Event) {
		log.Info().Interface("data", e.Data["signal"]).Msg("Signal generated")
	})
	bus.Subscribe(events.EventSignalStatusChanged, func(e events.Event) {
		log.Info().
			Interface("signal_id", e.Data["signal_id"]).
			Interface("from", e.Data["from"]).
			Interface("to", e.Data["to"]).
			Interface("cause", e.Data["cause"]).
			Msg("Signal status changed")
	})
	bus.Subscribe(events.EventScanSymbolError, func(e events.Event) {
		log.Warn().Interface("symbol", e.Data["symbol"]).Interface("error", e.Data["error"]).Msg("Symbol scan failed")
	})
}
