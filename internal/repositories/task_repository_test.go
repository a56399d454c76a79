package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"taskforce-bot.com/taskforce-bot/internal/constants"
	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
	model "taskforce-bot.com/taskforce-bot/internal/models"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

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

func seedTask(t *testing.T, repo *TaskRepository, status constants.TaskStatus, deadline time.Time) *model.Task {
	t.Helper()

	task := &model.Task{
		Title:       "Task",
		Description: "desc",
		CreatorID:   "creator",
		Mode:        constants.ModeSingle,
		Status:      status,
		Deadline:    deadline,
		CreatedAt:   testBase,
	}
	require.NoError(t, repo.Create(context.Background(), task))
	return task
}

func TestClaimOpen_SecondClaimConflicts(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	task := seedTask(t, repo, constants.StatusOpen, testBase.Add(time.Hour))

	ctx := context.Background()
	require.NoError(t, repo.ClaimOpen(ctx, task.ID, "alice"))

	err := repo.ClaimOpen(ctx, task.ID, "bob")
	require.ErrorIs(t, err, apperrors.ErrTaskAlreadyTaken)

	got, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusInProgress, got.Status)
	require.Equal(t, "alice", *got.AssigneeID)
	require.EqualValues(t, 2, got.Version)
}

func TestClaimWarnHorizon_MonotonicTightening(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	task := seedTask(t, repo, constants.StatusInProgress, testBase.Add(40*time.Hour))

	ctx := context.Background()

	claimed, err := repo.ClaimWarnHorizon(ctx, task.ID, constants.Horizon48h)
	require.NoError(t, err)
	require.True(t, claimed)

	// Same horizon again: already claimed.
	claimed, err = repo.ClaimWarnHorizon(ctx, task.ID, constants.Horizon48h)
	require.NoError(t, err)
	require.False(t, claimed)

	// A tighter horizon may still claim.
	claimed, err = repo.ClaimWarnHorizon(ctx, task.ID, constants.Horizon24h)
	require.NoError(t, err)
	require.True(t, claimed)

	// But never back to a looser one.
	claimed, err = repo.ClaimWarnHorizon(ctx, task.ID, constants.Horizon48h)
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestListDeadlineApproaching_WindowAndMarker(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	ctx := context.Background()

	inWindow := seedTask(t, repo, constants.StatusAssigned, testBase.Add(20*time.Hour))
	seedTask(t, repo, constants.StatusAssigned, testBase.Add(30*time.Hour))  // beyond window
	seedTask(t, repo, constants.StatusSubmitted, testBase.Add(10*time.Hour)) // not active
	seedTask(t, repo, constants.StatusAssigned, testBase.Add(-time.Hour))    // already past

	tasks, err := repo.ListDeadlineApproaching(ctx, testBase, constants.Horizon24h)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, inWindow.ID, tasks[0].ID)

	_, err = repo.ClaimWarnHorizon(ctx, inWindow.ID, constants.Horizon24h)
	require.NoError(t, err)

	tasks, err = repo.ListDeadlineApproaching(ctx, testBase, constants.Horizon24h)
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestMarkOverdueIf_SkipsTerminalAndRepeatedFlips(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	ctx := context.Background()

	task := seedTask(t, repo, constants.StatusInProgress, testBase.Add(-time.Hour))

	flipped, err := repo.MarkOverdueIf(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, flipped)

	flipped, err = repo.MarkOverdueIf(ctx, task.ID)
	require.NoError(t, err)
	require.False(t, flipped)

	done := seedTask(t, repo, constants.StatusCompleted, testBase.Add(-time.Hour))
	flipped, err = repo.MarkOverdueIf(ctx, done.ID)
	require.NoError(t, err)
	require.False(t, flipped)
}

func TestOverdueFlip_SparesSubmitted(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskRepository(db)
	assignments := NewAssignmentRepository(db)
	ctx := context.Background()

	inReview := seedTask(t, tasks, constants.StatusSubmitted, testBase.Add(-time.Hour))
	late := seedTask(t, tasks, constants.StatusInProgress, testBase.Add(-time.Hour))

	flipped, err := tasks.MarkOverdueIf(ctx, inReview.ID)
	require.NoError(t, err)
	require.False(t, flipped)

	passed, err := tasks.ListDeadlinePassed(ctx, testBase)
	require.NoError(t, err)
	require.Len(t, passed, 1)
	require.Equal(t, late.ID, passed[0].ID)

	a := &model.Assignment{
		TaskID: inReview.ID, UserID: "alice",
		Status: constants.StatusSubmitted, AssignedAt: testBase,
	}
	require.NoError(t, assignments.Create(ctx, a))

	flipped, err = assignments.MarkOverdueIf(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, flipped)
}

func TestRevise_ResetsWarnMarkerAndDeadline(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	ctx := context.Background()

	task := seedTask(t, repo, constants.StatusSubmitted, testBase.Add(time.Hour))
	_, err := repo.ClaimWarnHorizon(ctx, task.ID, constants.Horizon1h)
	require.NoError(t, err)

	newDeadline := testBase.Add(72 * time.Hour)
	ok, err := repo.Revise(ctx, task.ID, newDeadline)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusRevision, got.Status)
	require.Zero(t, got.WarnedHorizon)
	require.WithinDuration(t, newDeadline, got.Deadline, time.Second)

	// Revise only applies to submitted work.
	ok, err = repo.Revise(ctx, task.ID, newDeadline)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAssignmentCreate_DuplicatePairConflicts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	first := &model.Assignment{
		TaskID: "task-1", UserID: "user-1",
		Status: constants.StatusInProgress, AssignedAt: testBase,
	}
	require.NoError(t, repo.Create(ctx, first))

	dup := &model.Assignment{
		TaskID: "task-1", UserID: "user-1",
		Status: constants.StatusInProgress, AssignedAt: testBase,
	}
	err := repo.Create(ctx, dup)
	require.ErrorIs(t, err, apperrors.ErrTaskAlreadyTaken)

	other := &model.Assignment{
		TaskID: "task-1", UserID: "user-2",
		Status: constants.StatusInProgress, AssignedAt: testBase,
	}
	require.NoError(t, repo.Create(ctx, other))
}

func TestReminderClaimSent_OnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReminderRepository(db)
	ctx := context.Background()

	rem := &model.Reminder{TaskID: "task-1", RemindAt: testBase.Add(-time.Minute)}
	require.NoError(t, repo.Create(ctx, rem))

	due, err := repo.ListDue(ctx, testBase)
	require.NoError(t, err)
	require.Len(t, due, 1)

	claimed, err := repo.ClaimSent(ctx, rem.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = repo.ClaimSent(ctx, rem.ID)
	require.NoError(t, err)
	require.False(t, claimed)

	due, err = repo.ListDue(ctx, testBase)
	require.NoError(t, err)
	require.Empty(t, due)
}
