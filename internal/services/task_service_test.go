package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskforce-bot.com/taskforce-bot/internal/constants"
	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
	model "taskforce-bot.com/taskforce-bot/internal/models"
	repository "taskforce-bot.com/taskforce-bot/internal/repositories"
)

func TestCreateTask_SingleAssignedFanout(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)
	alice := env.seedUser(t, "alice", "Alice", false)

	task := env.createTask(t, "admin", CreateTaskParams{
		Title:          "Write the report",
		Description:    "quarterly numbers",
		Mode:           constants.ModeSingle,
		AssigneeChatID: "alice",
	})

	require.Equal(t, constants.StatusAssigned, task.Status)
	require.NotNil(t, task.AssigneeID)
	require.Equal(t, alice.ID, *task.AssigneeID)

	assignments, err := env.store.Assignments.ListByTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.Equal(t, constants.StatusAssigned, assignments[0].Status)

	require.Equal(t, 1, env.notifier.containing("alice", "Write the report"))
}

func TestCreateTask_MultiFanoutDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)
	env.seedUser(t, "alice", "Alice", false)
	env.seedUser(t, "bob", "Bob", false)

	task := env.createTask(t, "admin", CreateTaskParams{
		Title:           "Team task",
		Description:     "desc",
		Mode:            constants.ModeMulti,
		AssigneeChatIDs: []string{"alice", "bob", "alice"},
	})

	assignments, err := env.store.Assignments.ListByTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
}

func TestCreateTask_BroadcastAnnouncesToChannel(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)

	task := env.createTask(t, "admin", CreateTaskParams{
		Title:       "Open call",
		Description: "whoever is free",
		Mode:        constants.ModeBroadcast,
	})

	require.Equal(t, constants.StatusOpen, task.Status)

	assignments, err := env.store.Assignments.ListByTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Empty(t, assignments)

	announcements := env.notifier.to("broadcast-channel")
	require.Len(t, announcements, 1)
	require.Equal(t, "take:"+task.ID, announcements[0].Action)
}

func TestCreateTask_Guards(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)
	env.seedUser(t, "alice", "Alice", false)

	ctx := context.Background()

	_, err := env.tasks.CreateTask(ctx, "alice", CreateTaskParams{
		Title:       "Nope",
		Description: "desc",
		Mode:        constants.ModeSingle,
		Deadline:    env.clk.Now().Add(time.Hour),
	})
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = env.tasks.CreateTask(ctx, "admin", CreateTaskParams{
		Title:       "Past",
		Description: "desc",
		Mode:        constants.ModeSingle,
		Deadline:    env.clk.Now().Add(-time.Hour),
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidDeadline)

	_, err = env.tasks.CreateTask(ctx, "admin", CreateTaskParams{
		Title:          "Ghost assignee",
		Description:    "desc",
		Mode:           constants.ModeSingle,
		AssigneeChatID: "nobody",
		Deadline:       env.clk.Now().Add(time.Hour),
	})
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestDeleteTask_Cascades(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)
	env.seedUser(t, "alice", "Alice", false)

	task := env.createTask(t, "admin", CreateTaskParams{
		Title:          "Task",
		Description:    "desc",
		Mode:           constants.ModeSingle,
		AssigneeChatID: "alice",
	})

	ctx := context.Background()
	_, err := env.lifecycle.Submit(ctx, "alice", task.ID, "done")
	require.NoError(t, err)
	_, err = env.tasks.ScheduleReminder(ctx, "admin", task.ID, env.clk.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, env.tasks.DeleteTask(ctx, "admin", task.ID))

	_, err = env.store.Tasks.FindByID(ctx, task.ID)
	require.ErrorIs(t, err, apperrors.ErrTaskNotFound)

	assignments, err := env.store.Assignments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Empty(t, assignments)

	comments, err := env.store.Comments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Empty(t, comments)

	var reminders int64
	require.NoError(t, env.db.Model(&model.Reminder{}).Where("task_id = ?", task.ID).Count(&reminders).Error)
	require.Zero(t, reminders)
}

func TestScheduleReminder_Guards(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)

	task := env.createTask(t, "admin", CreateTaskParams{
		Title:       "Task",
		Description: "desc",
		Mode:        constants.ModeBroadcast,
	})

	ctx := context.Background()

	_, err := env.tasks.ScheduleReminder(ctx, "admin", "missing", env.clk.Now().Add(time.Hour))
	require.ErrorIs(t, err, apperrors.ErrTaskNotFound)

	_, err = env.tasks.ScheduleReminder(ctx, "admin", task.ID, env.clk.Now().Add(-time.Minute))
	require.ErrorIs(t, err, apperrors.ErrInvalidDeadline)

	reminder, err := env.tasks.ScheduleReminder(ctx, "admin", task.ID, env.clk.Now().Add(time.Hour))
	require.NoError(t, err)
	require.False(t, reminder.Sent)
}

func TestListForUser_RoleAware(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)
	env.seedUser(t, "alice", "Alice", false)
	env.seedUser(t, "bob", "Bob", false)

	assigned := env.createTask(t, "admin", CreateTaskParams{
		Title: "Alice's task", Description: "d", Mode: constants.ModeSingle, AssigneeChatID: "alice",
	})
	broadcast := env.createTask(t, "admin", CreateTaskParams{
		Title: "Group task", Description: "d", Mode: constants.ModeBroadcast,
	})
	env.createTask(t, "admin", CreateTaskParams{
		Title: "Bob's task", Description: "d", Mode: constants.ModeSingle, AssigneeChatID: "bob",
	})

	ctx := context.Background()

	aliceTasks, err := env.tasks.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.ElementsMatch(t,
		[]string{assigned.ID, broadcast.ID},
		collectIDs(aliceTasks))

	adminTasks, err := env.tasks.ListForUser(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, adminTasks, 2) // assigned tasks; the open broadcast is not "active" yet

	openTasks, err := env.tasks.ListOpen(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{broadcast.ID}, collectIDs(openTasks))
}

func TestListCompletedAndOverdue(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)
	env.seedUser(t, "alice", "Alice", false)

	done := env.createTask(t, "admin", CreateTaskParams{
		Title: "Done task", Description: "d", Mode: constants.ModeSingle, AssigneeChatID: "alice",
	})
	late := env.createTask(t, "admin", CreateTaskParams{
		Title: "Late task", Description: "d", Mode: constants.ModeSingle, AssigneeChatID: "alice",
		Deadline: env.clk.Now().Add(time.Hour),
	})

	ctx := context.Background()
	_, err := env.lifecycle.Submit(ctx, "alice", done.ID, "done")
	require.NoError(t, err)
	_, err = env.lifecycle.Accept(ctx, "admin", done.ID)
	require.NoError(t, err)

	env.clk.Advance(2 * time.Hour)
	_, err = env.lifecycle.DeadlineExceeded(ctx, late.ID)
	require.NoError(t, err)

	completed, err := env.tasks.ListCompleted(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{done.ID}, collectIDs(completed))

	overdue, err := env.tasks.ListOverdue(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{late.ID}, collectIDs(overdue))
}

func TestListByAssignee_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)
	env.seedUser(t, "alice", "Alice", false)

	task := env.createTask(t, "admin", CreateTaskParams{
		Title: "Task", Description: "d", Mode: constants.ModeSingle, AssigneeChatID: "alice",
	})

	ctx := context.Background()

	_, err := env.tasks.ListByAssignee(ctx, "alice", "alice")
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	tasks, err := env.tasks.ListByAssignee(ctx, "admin", "alice")
	require.NoError(t, err)
	require.Equal(t, []string{task.ID}, collectIDs(tasks))
}

func TestStoreAtomic_RollsBackOnError(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)

	task := env.createTask(t, "admin", CreateTaskParams{
		Title: "Task", Description: "d", Mode: constants.ModeBroadcast,
	})

	ctx := context.Background()
	err := env.store.Atomic(ctx, func(tx *repository.Store) error {
		if createErr := tx.Comments.Create(ctx, &model.Comment{
			TaskID: task.ID, UserID: "u", Text: "will be rolled back",
		}); createErr != nil {
			return createErr
		}
		return apperrors.ErrInvalidTransition
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	comments, err := env.store.Comments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Empty(t, comments)
}

func collectIDs(tasks []model.Task) []string {
	ids := make([]string, 0, len(tasks))
	for i := range tasks {
		ids = append(ids, tasks[i].ID)
	}
	return ids
}

func TestGetTask_SurfacesLatestFeedback(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)
	env.seedUser(t, "alice", "Alice", false)

	task := env.createTask(t, "admin", CreateTaskParams{
		Title:          "Report",
		Description:    "desc",
		Mode:           constants.ModeSingle,
		AssigneeChatID: "alice",
	})

	ctx := context.Background()

	detail, err := env.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Nil(t, detail.LatestComment)

	_, err = env.lifecycle.Submit(ctx, "alice", task.ID, "first draft")
	require.NoError(t, err)

	env.clk.Advance(time.Minute)
	_, err = env.lifecycle.RequestRevision(ctx, "admin", task.ID,
		env.clk.Now().Add(48*time.Hour), "missing the summary section")
	require.NoError(t, err)

	detail, err = env.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, task.ID, detail.Task.ID)
	require.NotNil(t, detail.LatestComment)
	require.Equal(t, "missing the summary section", detail.LatestComment.Text)
}
