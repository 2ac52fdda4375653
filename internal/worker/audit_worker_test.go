package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"teesheet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuditStore struct {
	mock.Mock
}

func (m *mockAuditStore) RecordOutcome(ctx context.Context, rec *models.AuditRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockAuditStore) ListOutcomes(ctx context.Context, limit int) ([]models.AuditRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditRecord), args.Error(1)
}
func (m *mockAuditStore) PendingTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SyncTask), args.Error(1)
}
func (m *mockAuditStore) UpdateTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	return m.Called(ctx, id, status, errMsg, nextRetryAt).Error(0)
}
func (m *mockAuditStore) FailedTasks(ctx context.Context) ([]models.SyncTask, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SyncTask), args.Error(1)
}

type mockSheetWriter struct {
	mock.Mock
}

func (m *mockSheetWriter) AppendAuditRow(ctx context.Context, rec *models.AuditRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func taskWithPayload(t *testing.T, id int64, retries int) models.SyncTask {
	t.Helper()
	payload, err := json.Marshal(models.AuditRecord{
		ID: id, UnmatchedID: 7, Outcome: models.OutcomeResolved, BookingID: 42,
	})
	require.NoError(t, err)
	return models.SyncTask{ID: id, AuditID: id, Payload: string(payload), RetryCount: retries}
}

func TestProcessTaskSuccess(t *testing.T) {
	store := new(mockAuditStore)
	sheets := new(mockSheetWriter)
	w := NewAuditWorker(store, sheets, RetryPolicy{}, nil)

	task := taskWithPayload(t, 1, 0)
	sheets.On("AppendAuditRow", mock.Anything, mock.MatchedBy(func(rec *models.AuditRecord) bool {
		return rec.BookingID == 42 && rec.Outcome == models.OutcomeResolved
	})).Return(nil).Once()
	store.On("UpdateTaskStatus", mock.Anything, int64(1), models.TaskCompleted, "", (*time.Time)(nil)).Return(nil).Once()

	w.processTask(context.Background(), &task)
	store.AssertExpectations(t)
	sheets.AssertExpectations(t)
}

func TestProcessTaskSchedulesRetry(t *testing.T) {
	store := new(mockAuditStore)
	sheets := new(mockSheetWriter)
	w := NewAuditWorker(store, sheets, RetryPolicy{Base: time.Second, Factor: 2, Attempts: 5}, nil)

	task := taskWithPayload(t, 2, 1)
	sheets.On("AppendAuditRow", mock.Anything, mock.Anything).Return(errors.New("quota exceeded")).Once()
	store.On("UpdateTaskStatus", mock.Anything, int64(2), models.TaskRetry, "quota exceeded",
		mock.MatchedBy(func(next *time.Time) bool {
			// Attempt 2 backs off by 2s.
			return next != nil && time.Until(*next) > time.Second && time.Until(*next) <= 2*time.Second
		})).Return(nil).Once()

	w.processTask(context.Background(), &task)
	store.AssertExpectations(t)
}

func TestProcessTaskDeadLettersWhenExhausted(t *testing.T) {
	store := new(mockAuditStore)
	sheets := new(mockSheetWriter)
	w := NewAuditWorker(store, sheets, RetryPolicy{Attempts: 3}, nil)

	task := taskWithPayload(t, 3, 2)
	sheets.On("AppendAuditRow", mock.Anything, mock.Anything).Return(errors.New("still broken")).Once()
	store.On("UpdateTaskStatus", mock.Anything, int64(3), models.TaskFailed, "still broken", (*time.Time)(nil)).Return(nil).Once()

	w.processTask(context.Background(), &task)
	store.AssertExpectations(t)
}

func TestProcessTaskBadPayloadFailsImmediately(t *testing.T) {
	store := new(mockAuditStore)
	sheets := new(mockSheetWriter)
	w := NewAuditWorker(store, sheets, RetryPolicy{}, nil)

	task := models.SyncTask{ID: 4, Payload: "{not json"}
	store.On("UpdateTaskStatus", mock.Anything, int64(4), models.TaskFailed, mock.Anything, (*time.Time)(nil)).Return(nil).Once()

	w.processTask(context.Background(), &task)
	store.AssertExpectations(t)
	sheets.AssertNotCalled(t, "AppendAuditRow", mock.Anything, mock.Anything)
}

func TestDrainProcessesBatch(t *testing.T) {
	store := new(mockAuditStore)
	sheets := new(mockSheetWriter)
	w := NewAuditWorker(store, sheets, RetryPolicy{}, nil)

	tasks := []models.SyncTask{taskWithPayload(t, 1, 0), taskWithPayload(t, 2, 0)}
	store.On("PendingTasks", mock.Anything, 20).Return(tasks, nil).Once()
	sheets.On("AppendAuditRow", mock.Anything, mock.Anything).Return(nil).Twice()
	store.On("UpdateTaskStatus", mock.Anything, mock.Anything, models.TaskCompleted, "", (*time.Time)(nil)).Return(nil).Twice()

	w.drain(context.Background())
	store.AssertExpectations(t)
	sheets.AssertExpectations(t)
}

func TestDrainSurvivesStoreError(t *testing.T) {
	store := new(mockAuditStore)
	sheets := new(mockSheetWriter)
	w := NewAuditWorker(store, sheets, RetryPolicy{}, nil)

	store.On("PendingTasks", mock.Anything, 20).Return(nil, errors.New("db locked")).Once()

	assert.NotPanics(t, func() { w.drain(context.Background()) })
	sheets.AssertNotCalled(t, "AppendAuditRow", mock.Anything, mock.Anything)
}
