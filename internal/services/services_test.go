package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"taskforce-bot.com/taskforce-bot/internal/clock"
	"taskforce-bot.com/taskforce-bot/internal/constants"
	model "taskforce-bot.com/taskforce-bot/internal/models"
	"taskforce-bot.com/taskforce-bot/internal/notify"
	repository "taskforce-bot.com/taskforce-bot/internal/repositories"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeNotifier records every message instead of delivering it.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (f *fakeNotifier) Notify(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeNotifier) to(target string) []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.Message
	for _, m := range f.sent {
		if m.Target == target {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeNotifier) containing(target, substr string) int {
	n := 0
	for _, m := range f.to(target) {
		if strings.Contains(m.Text, substr) {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Task{},
		&model.Assignment{},
		&model.Comment{},
		&model.Reminder{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return db
}

type testEnv struct {
	db        *gorm.DB
	store     *repository.Store
	notifier  *fakeNotifier
	clk       *clock.Fake
	lifecycle *LifecycleService
	tasks     *TaskService
	users     *UserService
	reports   *ReportService
	scheduler *DeadlineScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	store := repository.NewStore(db)
	notifier := &fakeNotifier{}
	clk := clock.NewFake(testBase)
	log := zap.NewNop()

	lifecycle := NewLifecycleService(store, notifier, clk, log)
	reports := NewReportService(store, notifier, clk, log)

	return &testEnv{
		db:        db,
		store:     store,
		notifier:  notifier,
		clk:       clk,
		lifecycle: lifecycle,
		tasks:     NewTaskService(store, NewFanoutResolver(), notifier, clk, log, "broadcast-channel"),
		users:     NewUserService(store, clk, log),
		reports:   reports,
		scheduler: NewDeadlineScheduler(store, lifecycle, reports, notifier, clk, log, SchedulerCadence{}),
	}
}

func (e *testEnv) seedUser(t *testing.T, chatID, name string, admin bool) *model.User {
	t.Helper()

	user := &model.User{
		ChatID:              chatID,
		FirstName:           name,
		IsAdmin:             admin,
		IsActive:            true,
		NotificationEnabled: true,
		CreatedAt:           e.clk.Now(),
		LastSeenAt:          e.clk.Now(),
	}
	require.NoError(t, e.store.Users.Create(context.Background(), user))
	return user
}

func (e *testEnv) createTask(t *testing.T, creatorChatID string, p CreateTaskParams) *model.Task {
	t.Helper()

	if p.Deadline.IsZero() {
		p.Deadline = e.clk.Now().Add(72 * time.Hour)
	}
	task, err := e.tasks.CreateTask(context.Background(), creatorChatID, p)
	require.NoError(t, err)
	return task
}

func (e *testEnv) taskStatus(t *testing.T, taskID string) constants.TaskStatus {
	t.Helper()

	task, err := e.store.Tasks.FindByID(context.Background(), taskID)
	require.NoError(t, err)
	return task.Status
}
