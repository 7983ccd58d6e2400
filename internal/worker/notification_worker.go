package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"consultdesk/internal/domain"
	"consultdesk/internal/events"
	"consultdesk/internal/metrics"
	"consultdesk/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NotifierSource resolves the notifier for a channel.
type NotifierSource interface {
	Get(channel string) (domain.Notifier, error)
}

// NotificationWorker delivers booking requests. Every request becomes one
// outbox task per channel; tasks are handed over through redis when
// available, an in-memory queue otherwise, and the outbox is polled for
// retries and anything the queues lost.
type NotificationWorker struct {
	outbox        domain.OutboxRepository
	notifiers     NotifierSource
	channels      []string
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan *models.OutboxTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
	now           func() time.Time
}

type Options struct {
	Channels     []string
	Redis        *redis.Client
	Retry        RetryPolicy
	PollInterval time.Duration
	BatchSize    int
	Logger       *zerolog.Logger
}

func NewNotificationWorker(outbox domain.OutboxRepository, notifiers NotifierSource, opts Options) *NotificationWorker {
	retry := opts.Retry
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if len(opts.Channels) == 0 {
		opts.Channels = []string{models.ChannelLog}
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &NotificationWorker{
		outbox:        outbox,
		notifiers:     notifiers,
		channels:      opts.Channels,
		redis:         opts.Redis,
		retryPolicy:   retry,
		queue:         make(chan *models.OutboxTask, models.WorkerQueueSize),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  opts.PollInterval,
		batchSize:     opts.BatchSize,
		logger:        logger,
		now:           time.Now,
	}
}

// Enqueue persists one task per configured channel and schedules it.
func (w *NotificationWorker) Enqueue(ctx context.Context, n *models.BookingNotification) error {
	if n == nil {
		return errors.New("notification is required")
	}
	if n.SessionID == "" {
		return errors.New("session id is required")
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	for _, channel := range w.channels {
		task := &models.OutboxTask{
			Channel:   channel,
			SessionID: n.SessionID,
			Payload:   string(payload),
			Status:    models.TaskStatusPending,
		}
		if err := w.outbox.CreateOutboxTask(ctx, task); err != nil {
			return fmt.Errorf("persist outbox task: %w", err)
		}
		w.schedule(ctx, task)
	}
	return nil
}

// HandleBookingSubmitted is the event-bus subscriber for submitted forms.
func (w *NotificationWorker) HandleBookingSubmitted(ev *events.Event) error {
	var payload events.BookingSubmittedPayload
	if err := ev.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", ev.Type, err)
	}
	return w.Enqueue(context.Background(), &payload.Notification)
}

func (w *NotificationWorker) schedule(ctx context.Context, task *models.OutboxTask) {
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, using memory queue")
		} else {
			return
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left to polling")
	}
}

// Start runs the delivery loop until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Strs("channels", w.channels).Msg("notification worker started")
	defer w.logger.Info().Msg("notification worker stopped")

	if n, err := w.outbox.RequeueProcessingOutboxTasks(ctx); err != nil {
		w.logger.Error().Err(err).Msg("requeue interrupted outbox tasks")
	} else if n > 0 {
		w.logger.Warn().Int64("count", n).Msg("requeued interrupted outbox tasks")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, t)
			continue
		}

		if n := w.ProcessPending(ctx); n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, t)
		case <-time.After(w.pollInterval):
		}
	}
}

// ProcessPending delivers one batch of due outbox tasks and returns how many
// were attempted.
func (w *NotificationWorker) ProcessPending(ctx context.Context) int {
	tasks, err := w.outbox.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending outbox tasks")
		}
		return 0
	}
	for _, t := range tasks {
		w.processTask(ctx, t)
	}
	return len(tasks)
}

func (w *NotificationWorker) tryLocalQueue() (*models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return nil, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (*models.OutboxTask, bool) {
	if w.redis == nil {
		return nil, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Warn().Err(err).Msg("redis BRPOP failed")
		}
		return nil, false
	}
	if len(res) != 2 {
		return nil, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return nil, false
	}
	return &task, true
}

func (w *NotificationWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	// the same task can arrive from a queue and from polling; the claimed row
	// is authoritative for the attempt count
	claimed, err := w.outbox.ClaimOutboxTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("claim outbox task")
		return
	}
	if claimed == nil {
		return
	}
	task = claimed
	log := w.logger.With().Int64("task_id", task.ID).Str("channel", task.Channel).Str("session_id", task.SessionID).Logger()

	var n models.BookingNotification
	if err := json.Unmarshal([]byte(task.Payload), &n); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	notifier, err := w.notifiers.Get(task.Channel)
	if err != nil {
		w.failTask(ctx, task, err)
		return
	}

	if err := notifier.Notify(ctx, &n); err != nil {
		metrics.IncNotification(task.Channel, "error")
		log.Warn().Err(err).Int("attempt", task.RetryCount+1).Msg("notification delivery failed")
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification(task.Channel, "success")
	if err := w.outbox.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		log.Error().Err(err).Msg("mark completed")
		return
	}
	log.Debug().Msg("notification delivered")
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	next := w.now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.outbox.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *NotificationWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	metrics.IncNotification(task.Channel, "failed")
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("channel", task.Channel).Msg("notification abandoned")
	if err := w.outbox.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("deadletter push failed")
		}
	}
}

func (w *NotificationWorker) pushRedis(ctx context.Context, key string, task *models.OutboxTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
