package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"consultdesk/internal/api"
	"consultdesk/internal/app"
	"consultdesk/internal/bot"
	"consultdesk/internal/config"
	"consultdesk/internal/logging"
	"consultdesk/internal/metrics"
	"consultdesk/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Str("path", cfg.Exports.Path).Msg("create export directory")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Error().Msg("Set telegram.bot_token in config.yaml")
		return os.ErrInvalid
	}
	botWrapper, err := bot.Connect(cfg.Telegram)
	if err != nil {
		logger.Error().Err(err).Msg("connect to telegram")
		return err
	}

	a, err := app.New(ctx, cfg, &logger, app.Options{Telegram: botWrapper})
	if err != nil {
		logger.Error().Err(err).Msg("init application")
		return err
	}
	defer a.Close()
	a.Run(ctx)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go metrics.Serve(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	// The bot can serve the web widget too when both run in one process.
	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, a.Sessions, a.Exporter, &logger, a.HealthChecks()...)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	telegramBot := bot.NewBot(
		service.NewTelegramService(botWrapper),
		a.Sessions,
		a.Exporter,
		a.Clock,
		cfg.Telegram.OwnerChatID,
		bot.NewMetrics(prometheus.DefaultRegisterer),
		logging.Component(&logger, "bot"),
	)

	logger.Info().Msg("Bot started")
	go func() {
		<-ctx.Done()
		telegramBot.Stop()
	}()
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	return cfg, logger, closer, nil
}
