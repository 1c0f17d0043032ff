package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/database"
	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/metrics"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert       = "upsert"
	TaskUpdateStatus = "update_status"
	TaskReplaceAll   = "replace_all"
)

// Store is the persistence the worker needs: the sync_queue plus appointment reads.
type Store interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetAppointmentView(ctx context.Context, id string) (*models.AppointmentView, error)
	ListAppointmentViews(ctx context.Context, filter models.AppointmentFilter) ([]*models.AppointmentView, error)
}

// sheetTaskPayload is persisted in SyncTask.Payload as JSON.
type sheetTaskPayload struct {
	AppointmentID string `json:"appointment_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

// SheetsWorker consumes sync_queue tasks and applies them to Google Sheets.
// Tasks are persisted first; Redis or the in-memory channel only speed up pickup.
type SheetsWorker struct {
	store         Store
	sheets        domain.SheetsWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewSheetsWorker builds a worker with sane defaults.
func NewSheetsWorker(store Store, sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SheetsWorker{
		store:         store,
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "navalha:sheets:queue",
		deadLetterKey: "navalha:sheets:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueTask persists a task and schedules it via redis or the in-memory queue.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType, appointmentID, status string) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if taskType != TaskReplaceAll && appointmentID == "" {
		return errors.New("appointment id is required")
	}
	if taskType == TaskUpdateStatus && status == "" {
		return errors.New("status is required")
	}

	payloadBytes, err := json.Marshal(sheetTaskPayload{AppointmentID: appointmentID, Status: status})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:      taskType,
		AppointmentID: appointmentID,
		Payload:       string(payloadBytes),
		Status:        database.SyncStatusPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, &task); err != nil {
			w.logger.Warn().Err(err).Msg("sheets_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("sheets_worker: in-memory queue full, task left to polling")
	}
	return nil
}

// EnqueueResync schedules a full rewrite of the sheet from the database.
func (w *SheetsWorker) EnqueueResync(ctx context.Context) error {
	return w.EnqueueTask(ctx, TaskReplaceAll, "", "")
}

// Start runs the main loop until ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets_worker: started")
	defer w.logger.Info().Msg("sheets_worker: stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}
		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("sheets_worker: fetch pending")
		}
		if err != nil || len(tasks) == 0 {
			if !w.sleep(ctx) {
				return
			}
			continue
		}
		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *SheetsWorker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *SheetsWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Error().Err(err).Msg("sheets_worker: redis BRPOP error")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("sheets_worker: decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := w.decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleSheetTask(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncSyncTask(database.SyncStatusCompleted)
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, database.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sheets_worker: mark completed")
	}
}

func (w *SheetsWorker) handleSheetTask(ctx context.Context, taskType string, payload sheetTaskPayload) error {
	switch taskType {
	case TaskUpsert:
		if payload.AppointmentID == "" {
			return errors.New("appointment id missing")
		}
		view, err := w.store.GetAppointmentView(ctx, payload.AppointmentID)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		return w.sheets.UpsertAppointment(ctx, view)
	case TaskUpdateStatus:
		if payload.AppointmentID == "" || payload.Status == "" {
			return errors.New("appointment id or status missing")
		}
		return w.sheets.UpdateAppointmentStatus(ctx, payload.AppointmentID, payload.Status)
	case TaskReplaceAll:
		views, err := w.store.ListAppointmentViews(ctx, models.AppointmentFilter{})
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		return w.sheets.ReplaceAppointmentsSheet(ctx, views)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncSyncTask(database.SyncStatusRetry)
	next := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, database.SyncStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sheets_worker: mark retry")
	}
}

func (w *SheetsWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncSyncTask(database.SyncStatusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("appointment_id", task.AppointmentID).Msg("sheets_worker: task failed")
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, database.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sheets_worker: mark failed")
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sheets_worker: deadletter push")
		}
	}
}

func (w *SheetsWorker) decodePayload(raw string) (sheetTaskPayload, error) {
	var payload sheetTaskPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (w *SheetsWorker) pushRedis(ctx context.Context, key string, task *models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
