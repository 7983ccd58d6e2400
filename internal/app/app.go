package app

import (
	"context"
	"fmt"

	"consultdesk/internal/api"
	"consultdesk/internal/availability"
	"consultdesk/internal/config"
	"consultdesk/internal/database"
	"consultdesk/internal/dialogue"
	"consultdesk/internal/domain"
	"consultdesk/internal/events"
	"consultdesk/internal/export"
	"consultdesk/internal/google"
	"consultdesk/internal/logging"
	"consultdesk/internal/notify"
	"consultdesk/internal/repository"
	"consultdesk/internal/schedule"
	"consultdesk/internal/service"
	"consultdesk/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the services shared by the HTTP and Telegram front-ends.
type App struct {
	Config   *config.Config
	Clock    schedule.Clock
	Redis    *redis.Client
	DB       *database.DB
	Bus      *events.EventBus
	Sessions *service.SessionService
	Exporter *export.Exporter
	Worker   *worker.NotificationWorker
	Backup   *database.BackupService

	logger *zerolog.Logger
}

// Options carries what only some processes have.
type Options struct {
	// Telegram enables the owner chat notifier.
	Telegram domain.TelegramSender
	Clock    schedule.Clock
}

// New wires storage, engines, notifiers and the session service. Redis and
// Google Sheets are optional: their failures are logged and the app runs
// without them.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, opts Options) (*App, error) {
	clock := opts.Clock
	if clock == nil {
		clock = schedule.RealClock()
	}

	booking, err := availability.NewEngine(cfg.Booking, clock)
	if err != nil {
		return nil, fmt.Errorf("booking engine: %w", err)
	}

	catalog, err := dialogue.LoadCatalog(cfg.Chatbot.ServicesFile)
	if err != nil {
		return nil, err
	}
	dlg := dialogue.NewEngine(cfg.Chatbot, catalog)

	a := &App{Config: cfg, Clock: clock, Bus: events.NewEventBus(), logger: logger}

	a.DB, err = database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		return nil, err
	}
	a.Backup = database.NewBackupService(a.DB, cfg.Database.Backup, logging.Component(logger, "backup"))

	a.Redis = initRedis(ctx, cfg.Redis, logger)

	registry := notify.NewRegistry(a.notifiers(ctx, opts.Telegram)...)
	channels := registry.Channels(cfg.Worker.Channels)
	if len(channels) < len(cfg.Worker.Channels) {
		logger.Warn().Strs("configured", cfg.Worker.Channels).Strs("active", channels).Msg("some notification channels are not configured")
	}

	a.Worker = worker.NewNotificationWorker(a.DB, registry, worker.Options{
		Channels:     channels,
		Redis:        a.Redis,
		Retry:        worker.RetryPolicyFromConfig(cfg.Worker),
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		Logger:       logging.Component(logger, "notification-worker"),
	})
	a.Bus.Subscribe(events.EventBookingSubmitted, a.Worker.HandleBookingSubmitted)
	subscribeActivity(a.Bus, logging.Component(logger, "activity"))

	a.Sessions = service.NewSessionService(a.sessionRepository(), booking, dlg, a.Bus, clock, cfg.Session,
		logging.Component(logger, "sessions"))
	a.Exporter = export.NewExporter(booking, cfg.Exports, logging.Component(logger, "export"))

	return a, nil
}

func initRedis(ctx context.Context, cfg config.RedisConfig, logger *zerolog.Logger) *redis.Client {
	if cfg.Address == "" {
		return nil
	}
	client := repository.NewRedisClient(cfg)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}
	logger.Info().Str("addr", cfg.Address).Msg("redis connected")
	return client
}

func (a *App) sessionRepository() domain.SessionRepository {
	memory := repository.NewMemorySessionRepository(a.Config.Session.TTL)
	if a.Redis == nil {
		return memory
	}
	primary := repository.NewRedisSessionRepository(a.Redis, a.Config.Session.TTL)
	return repository.NewFailoverSessionRepository(primary, memory, logging.Component(a.logger, "sessions-repo"))
}

func (a *App) notifiers(ctx context.Context, tg domain.TelegramSender) []domain.Notifier {
	cfg := a.Config
	out := []domain.Notifier{notify.NewLogNotifier(logging.Component(a.logger, "notify"))}

	if sender := notify.NewSendGridSender(cfg.SendGrid, a.logger); sender != nil {
		out = append(out, notify.NewEmailNotifier(sender))
	}

	if cfg.Google.CredentialsFile != "" && cfg.Google.BookingsSpreadsheetID != "" {
		sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID)
		if err == nil {
			err = sheets.EnsureHeader(ctx)
		}
		if err == nil {
			err = sheets.WarmUpCache(ctx)
		}
		if err != nil {
			l := a.logger.Warn().Err(err)
			if email, emailErr := google.ServiceAccountEmail(cfg.Google.CredentialsFile); emailErr == nil {
				l = l.Str("share_with", email)
			}
			l.Msg("google sheets init failed, continuing without sheets")
		} else {
			out = append(out, notify.NewSheetsNotifier(sheets))
			a.logger.Info().Msg("google sheets connected")
		}
	}

	if tg != nil && cfg.Telegram.OwnerChatID != 0 {
		out = append(out, notify.NewTelegramNotifier(tg, cfg.Telegram.OwnerChatID))
	}
	return out
}

// HealthChecks lists the dependencies reported by /health.
func (a *App) HealthChecks() []api.HealthCheck {
	checks := []api.HealthCheck{{Name: "database", Check: a.DB.Ping}}
	if a.Redis != nil {
		checks = append(checks, api.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return repository.Ping(ctx, a.Redis)
		}})
	}
	return checks
}

// Run starts the background services: notification delivery and backups.
func (a *App) Run(ctx context.Context) {
	if failed, err := a.DB.GetFailedOutboxTasks(ctx); err != nil {
		a.logger.Error().Err(err).Msg("load failed notifications")
	} else if len(failed) > 0 {
		a.logger.Warn().Int("count", len(failed)).Msg("notifications that exhausted their retries are kept in the outbox")
	}
	go a.Worker.Start(ctx)
	go a.Backup.Start(ctx)
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := repository.Close(a.Redis); err != nil {
			a.logger.Warn().Err(err).Msg("close redis")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close database")
		}
	}
}
