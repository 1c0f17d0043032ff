package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/database"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)
	appt := seedAppointment(t, db)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, appt.ID, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != database.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upsertCalls)
	}
	if sheets.lastView == nil || sheets.lastView.ServiceName != "Corte" {
		t.Fatalf("expected fresh appointment view, got %+v", sheets.lastView)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpdateStatus, "a-2", models.StatusCompleted); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != database.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFailPushesDeadLetter(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, client, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpdateStatus, "a-3", models.StatusCancelledByAdmin); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis queue")
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != database.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
	n, err := client.LLen(ctx, worker.deadLetterKey).Result()
	if err != nil || n != 1 {
		t.Fatalf("expected 1 dead letter, got %d (%v)", n, err)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	task := models.SyncTask{TaskType: TaskUpsert, AppointmentID: "x", Payload: "{"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != database.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestHandleSheetTask(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3}, nil)
	appt := seedAppointment(t, db)

	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{AppointmentID: appt.ID}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", sheets.upsertCalls)
		}
	})

	t.Run("UpsertMissingAppointment", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{AppointmentID: "missing"}); err == nil {
			t.Fatalf("expected error for unknown appointment")
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, TaskUpdateStatus, sheetTaskPayload{AppointmentID: appt.ID, Status: models.StatusCompleted})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.statusCalls != 1 {
			t.Fatalf("expected 1 status call, got %d", sheets.statusCalls)
		}
	})

	t.Run("ReplaceAll", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskReplaceAll, sheetTaskPayload{}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.replaced != 1 {
			t.Fatalf("expected 1 replaced row, got %d", sheets.replaced)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, "delete", sheetTaskPayload{AppointmentID: appt.ID}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestStartDrainsPendingTasks(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx := context.Background()
	// persisted but never pushed to a queue, e.g. left over from a previous run
	task := models.SyncTask{TaskType: TaskUpdateStatus, AppointmentID: "a-1", Payload: `{"appointment_id":"a-1","status":"completed"}`}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		worker.Start(runCtx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, _, _ := loadTaskStatus(t, db, task.ID)
		if status == database.SyncStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task not processed, status=%s", status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if d := policy.NextDelay(1); d != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d)
	}
	if d := policy.NextDelay(2); d != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d)
	}
	if d := policy.NextDelay(5); d != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s, got %s", d)
	}

	jittered := RetryPolicy{InitialDelay: 10 * time.Second, Jitter: 0.2}
	for i := 0; i < 50; i++ {
		d := jittered.NextDelay(1)
		if d < 8*time.Second || d > 12*time.Second {
			t.Fatalf("jittered delay %s outside ±20%%", d)
		}
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := RetryPolicy{}.withDefaults()
	if policy.MaxRetries != 5 || policy.InitialDelay != 2*time.Second || policy.MaxDelay != time.Minute {
		t.Fatalf("unexpected defaults: %+v", policy)
	}
	if policy.Exhausted(4) {
		t.Fatalf("attempt 4 of 5 must still retry")
	}
	if !policy.Exhausted(5) {
		t.Fatalf("attempt 5 of 5 must be dead-lettered")
	}
}

func TestEnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, "a-1", ""); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("Resync", func(t *testing.T) {
		if err := worker.EnqueueResync(ctx); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", "a-1", ""); err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("MissingAppointmentID", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, "", ""); err == nil {
			t.Fatalf("expected error for missing appointment id")
		}
	})

	t.Run("MissingStatus", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpdateStatus, "a-1", ""); err == nil {
			t.Fatalf("expected error for missing status")
		}
	})

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 persisted tasks, got %d", len(tasks))
	}
}

func TestEnqueueFallsBackToMemoryWhenRedisDown(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	worker := NewSheetsWorker(db, &fakeSheets{}, client, RetryPolicy{}, nil)
	if err := worker.EnqueueTask(context.Background(), TaskUpsert, "a-1", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := worker.tryLocalQueue(); !ok {
		t.Fatalf("expected task in local queue")
	}
}

func TestDecodePayload(t *testing.T) {
	worker := NewSheetsWorker(nil, nil, nil, RetryPolicy{}, nil)

	decoded, err := worker.decodePayload(`{"appointment_id":"a-123","status":"completed"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.AppointmentID != "a-123" || decoded.Status != "completed" {
		t.Fatalf("unexpected decoded payload: %+v", decoded)
	}

	if _, err := worker.decodePayload(`invalid json`); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

// Helpers

type fakeSheets struct {
	err         error
	upsertCalls int
	statusCalls int
	replaced    int
	lastView    *models.AppointmentView
}

func (f *fakeSheets) UpsertAppointment(_ context.Context, v *models.AppointmentView) error {
	f.upsertCalls++
	f.lastView = v
	return f.err
}

func (f *fakeSheets) UpdateAppointmentStatus(_ context.Context, _, _ string) error {
	f.statusCalls++
	return f.err
}

func (f *fakeSheets) ReplaceAppointmentsSheet(_ context.Context, appts []*models.AppointmentView) error {
	f.replaced = len(appts)
	return f.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "worker.db"), &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedAppointment(t *testing.T, db *database.DB) *models.Appointment {
	t.Helper()
	ctx := context.Background()
	owner := &models.User{ID: "s1", Email: "s1@navalha.test", Type: models.UserTypeAdmin, Name: "Dono"}
	shop := &models.Shop{ID: "s1", Name: "Navalha", Email: owner.Email, WorkingHours: models.DefaultWorkingHours()}
	sub := &models.Subscription{ShopID: "s1", PlanID: models.PlanFree, Status: models.SubscriptionActive, StartDate: time.Now()}
	if err := db.SignupShop(ctx, owner, shop, sub); err != nil {
		t.Fatalf("signup: %v", err)
	}
	client := &models.User{ID: "c1", Email: "c1@cliente.test", Type: models.UserTypeClient, Name: "Ana"}
	if err := db.CreateUser(ctx, client); err != nil {
		t.Fatalf("client: %v", err)
	}
	svc := &models.Service{ID: "sv1", ShopID: "s1", Name: "Corte", Price: 40, Duration: 45, IsActive: true}
	if err := db.CreateService(ctx, svc); err != nil {
		t.Fatalf("service: %v", err)
	}
	appt := &models.Appointment{ID: "a-1", ClientID: "c1", ShopID: "s1", ServiceID: "sv1", Date: "2025-07-16", Time: "10:00"}
	if err := db.CreateAppointmentWithLock(ctx, appt); err != nil {
		t.Fatalf("appointment: %v", err)
	}
	return appt
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
