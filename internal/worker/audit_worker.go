package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"teesheet/internal/domain"
	"teesheet/internal/models"

	"github.com/rs/zerolog"
)

// AuditWorker drains the sheet-sync queue: each task mirrors one audit
// record to the operations spreadsheet. Failures back off per the retry
// policy and dead-letter once it is exhausted.
type AuditWorker struct {
	store        domain.AuditStore
	sheets       domain.AuditSheetWriter
	retryPolicy  RetryPolicy
	pollInterval time.Duration
	batchSize    int
	logger       zerolog.Logger
}

func NewAuditWorker(store domain.AuditStore, sheets domain.AuditSheetWriter, retry RetryPolicy, logger *zerolog.Logger) *AuditWorker {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "audit_worker").Logger()
	}

	return &AuditWorker{
		store:        store,
		sheets:       sheets,
		retryPolicy:  retry.normalized(),
		pollInterval: 2 * time.Second,
		batchSize:    20,
		logger:       base,
	}
}

// Start launches the polling loop; stops when ctx is done.
func (w *AuditWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("audit worker started")
	defer w.logger.Info().Msg("audit worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *AuditWorker) drain(ctx context.Context) {
	tasks, err := w.store.PendingTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to fetch pending tasks")
		return
	}
	for i := range tasks {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.processTask(ctx, &tasks[i])
	}
}

func (w *AuditWorker) processTask(ctx context.Context, task *models.SyncTask) {
	var rec models.AuditRecord
	if err := json.Unmarshal([]byte(task.Payload), &rec); err != nil {
		// Bad payloads can never succeed; fail immediately.
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.sheets.AppendAuditRow(ctx, &rec); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.store.UpdateTaskStatus(ctx, task.ID, models.TaskCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("failed to mark task completed")
	}
}

func (w *AuditWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	if w.retryPolicy.Exhausted(task.RetryCount) {
		w.failTask(ctx, task, cause)
		return
	}

	attempt := task.RetryCount + 1
	nextDelay := w.retryPolicy.Delay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.store.UpdateTaskStatus(ctx, task.ID, models.TaskRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("failed to mark task for retry")
		return
	}
	w.logger.Warn().
		Int64("task_id", task.ID).
		Int("attempt", attempt).
		Dur("next_delay", nextDelay).
		Err(cause).
		Msg("sheet append failed, will retry")
}

func (w *AuditWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.store.UpdateTaskStatus(ctx, task.ID, models.TaskFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("failed to mark task failed")
		return
	}
	w.logger.Error().Int64("task_id", task.ID).Err(cause).Msg("task dead-lettered")
}
