package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courtside/internal/events"
	"courtside/internal/metrics"
	"courtside/internal/models"
	"courtside/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const deliveryTimeout = 10 * time.Second

// TaskStore persists the notification outbox.
type TaskStore interface {
	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetNotificationTask(ctx context.Context, id int64) (models.NotificationTask, error)
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// NotificationWorker delivers booking events to every configured sink. Each
// event becomes one outbox row per sink, so a slow or failing channel retries
// independently of the others. Delivery runs after the booking transaction has
// committed and its outcome never reaches the caller.
type NotificationWorker struct {
	store         TaskStore
	sinks         map[string]notify.Sink
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotificationTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewNotificationWorker builds a worker with sane defaults.
func NewNotificationWorker(store TaskStore, sinks []notify.Sink, redisClient *redis.Client, retry RetryPolicy, pollInterval time.Duration, logger *zerolog.Logger) *NotificationWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	byName := make(map[string]notify.Sink, len(sinks))
	for _, s := range sinks {
		byName[s.Name()] = s
	}

	return &NotificationWorker{
		store:         store,
		sinks:         byName,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.NotificationTask, 128),
		redisQueueKey: "notifications:queue",
		deadLetterKey: "notifications:deadletter",
		pollInterval:  pollInterval,
		batchSize:     20,
		logger:        logger,
	}
}

// Subscribe wires the worker to every booking event on the bus.
func (w *NotificationWorker) Subscribe(bus *events.EventBus) {
	for _, eventType := range events.BookingEventTypes {
		bus.Subscribe(eventType, func(e *events.Event) error {
			ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			defer cancel()
			return w.EnqueueEvent(ctx, e.Type, e.Payload)
		})
	}
}

// EnqueueEvent persists one task per sink and schedules it via redis or the
// in-memory queue.
func (w *NotificationWorker) EnqueueEvent(ctx context.Context, eventType string, payload []byte) error {
	if eventType == "" {
		return errors.New("event type is required")
	}
	var probe events.BookingEventPayload
	if err := json.Unmarshal(payload, &probe); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if probe.BookingID == 0 {
		return errors.New("booking id is required")
	}

	var errs []error
	for name := range w.sinks {
		task := models.NotificationTask{
			Channel:   name,
			EventKind: probe.Kind,
			BookingID: probe.BookingID,
			Payload:   string(payload),
			Status:    models.TaskPending,
		}
		if err := w.store.CreateNotificationTask(ctx, &task); err != nil {
			errs = append(errs, fmt.Errorf("persist notification task: %w", err))
			continue
		}
		w.schedule(ctx, task)
	}
	return errors.Join(errs...)
}

func (w *NotificationWorker) schedule(ctx context.Context, task models.NotificationTask) {
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, fallback to memory queue")
		} else {
			return
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}
}

// Start launches main loop; stops when ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Int("sinks", len(w.sinks)).Msg("notification worker started")
	defer w.logger.Info().Msg("notification worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingNotificationTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending notifications")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *NotificationWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *NotificationWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.NotificationTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.NotificationTask{}, false
	}
	return task, true
}

func (w *NotificationWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	// A task can arrive from the queue and from the DB poll; the stored row decides.
	current, err := w.store.GetNotificationTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("reload notification task")
		return
	}
	if current.Status == models.TaskCompleted || current.Status == models.TaskFailed {
		return
	}
	task = &current

	sink, ok := w.sinks[task.Channel]
	if !ok {
		w.failTask(ctx, task, fmt.Errorf("unknown channel: %s", task.Channel))
		return
	}

	var payload events.BookingEventPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	deliverCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	err = sink.Deliver(deliverCtx, &payload)
	cancel()
	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification(task.Channel, "delivered")
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncNotification(task.Channel, "retry")
	nextTime := time.Now().UTC().Add(w.retryPolicy.NextDelay(attempt))
	w.logger.Warn().Err(cause).
		Int64("task_id", task.ID).
		Str("channel", task.Channel).
		Int("attempt", attempt).
		Time("next_retry_at", nextTime).
		Msg("notification delivery failed, will retry")
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *NotificationWorker) failTask(ctx context.Context, task *models.NotificationTask, cause error) {
	metrics.IncNotification(task.Channel, "failed")
	w.logger.Error().Err(cause).
		Int64("task_id", task.ID).
		Str("channel", task.Channel).
		Int64("booking_id", task.BookingID).
		Msg("notification dropped")
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *NotificationWorker) pushRedis(ctx context.Context, task models.NotificationTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotificationWorker) pushDeadLetter(ctx context.Context, task *models.NotificationTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
