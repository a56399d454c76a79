package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskforce-bot.com/taskforce-bot/internal/clock"
	"taskforce-bot.com/taskforce-bot/internal/constants"
	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
	model "taskforce-bot.com/taskforce-bot/internal/models"
	"taskforce-bot.com/taskforce-bot/internal/notify"
	repository "taskforce-bot.com/taskforce-bot/internal/repositories"
)

// TaskService covers the admin-side task operations around the lifecycle
// engine: creation with assignment fanout, deletion, reminders, and the
// role-aware listings the bot menus are built from.
type TaskService struct {
	store           *repository.Store
	fanout          *FanoutResolver
	notifier        notify.Notifier
	clk             clock.Clock
	log             *zap.Logger
	broadcastTarget string
}

func NewTaskService(
	store *repository.Store,
	fanout *FanoutResolver,
	notifier notify.Notifier,
	clk clock.Clock,
	log *zap.Logger,
	broadcastTarget string,
) *TaskService {
	return &TaskService{
		store:           store,
		fanout:          fanout,
		notifier:        notifier,
		clk:             clk,
		log:             log,
		broadcastTarget: broadcastTarget,
	}
}

type CreateTaskParams struct {
	Title           string
	Description     string
	Deadline        time.Time
	Mode            constants.TargetingMode
	AssigneeChatID  string   // single mode; empty leaves the task open
	AssigneeChatIDs []string // multi mode
	MediaFileID     string
	MediaType       constants.MediaType
}

// CreateTask creates a task and fans out its assignments in one transaction,
// then notifies the chosen assignees or the broadcast channel.
func (s *TaskService) CreateTask(ctx context.Context, creatorChatID string, p CreateTaskParams) (*model.Task, error) {
	creator, err := s.requireAdmin(ctx, creatorChatID)
	if err != nil {
		return nil, err
	}
	if !p.Deadline.After(s.clk.Now()) {
		return nil, apperrors.ErrInvalidDeadline
	}

	task := &model.Task{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Description: p.Description,
		CreatorID:   creator.ID,
		Mode:        p.Mode,
		Deadline:    p.Deadline,
		MediaFileID: p.MediaFileID,
		MediaType:   p.MediaType,
		CreatedAt:   s.clk.Now(),
	}

	assigneeIDs, err := s.resolveAssignees(ctx, task, p)
	if err != nil {
		return nil, err
	}

	assignments := s.fanout.Resolve(task, assigneeIDs, s.clk.Now())

	err = s.store.Atomic(ctx, func(tx *repository.Store) error {
		if createErr := tx.Tasks.Create(ctx, task); createErr != nil {
			return createErr
		}
		for i := range assignments {
			if createErr := tx.Assignments.Create(ctx, &assignments[i]); createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task created",
		zap.String("task_id", task.ID),
		zap.String("mode", string(task.Mode)),
		zap.Int("assignments", len(assignments)),
		zap.Time("deadline", task.Deadline))

	s.announce(ctx, task, assignments)
	return task, nil
}

// resolveAssignees maps the chosen chat ids to user ids and pins the single
// assignee on the task itself.
func (s *TaskService) resolveAssignees(ctx context.Context, task *model.Task, p CreateTaskParams) ([]string, error) {
	switch p.Mode {
	case constants.ModeSingle:
		if p.AssigneeChatID == "" {
			return nil, nil
		}
		assignee, err := s.activeUser(ctx, p.AssigneeChatID)
		if err != nil {
			return nil, err
		}
		task.AssigneeID = &assignee.ID
		return []string{assignee.ID}, nil

	case constants.ModeMulti:
		if len(p.AssigneeChatIDs) == 0 {
			return nil, apperrors.ErrUserNotFound
		}
		ids := make([]string, 0, len(p.AssigneeChatIDs))
		seen := make(map[string]struct{}, len(p.AssigneeChatIDs))
		for _, chatID := range p.AssigneeChatIDs {
			user, err := s.activeUser(ctx, chatID)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[user.ID]; dup {
				continue
			}
			seen[user.ID] = struct{}{}
			ids = append(ids, user.ID)
		}
		return ids, nil

	case constants.ModeBroadcast:
		return nil, nil

	default:
		return nil, apperrors.ErrInvalidTransition
	}
}

func (s *TaskService) announce(ctx context.Context, task *model.Task, assignments []model.Assignment) {
	deadline := task.Deadline.Format(deadlineLayout)

	switch {
	case len(assignments) > 0:
		text := fmt.Sprintf("New task for you: «%s»\n%s\nDeadline: %s",
			task.Title, task.Description, deadline)
		for i := range assignments {
			s.notifyUserID(ctx, assignments[i].UserID, text, "task:"+task.ID)
		}
	case s.broadcastTarget != "":
		text := fmt.Sprintf("New open task: «%s»\n%s\nDeadline: %s",
			task.Title, task.Description, deadline)
		s.send(ctx, s.broadcastTarget, text, "take:"+task.ID)
	}
}

// DeleteTask is the explicit admin delete; assignments, comments and
// reminders go with the task.
func (s *TaskService) DeleteTask(ctx context.Context, adminChatID, taskID string) error {
	if _, err := s.requireAdmin(ctx, adminChatID); err != nil {
		return err
	}
	if err := s.store.Tasks.Delete(ctx, taskID); err != nil {
		return err
	}
	s.log.Info("task deleted", zap.String("task_id", taskID))
	return nil
}

// ScheduleReminder registers a one-shot reminder fired by the deadline
// scheduler.
func (s *TaskService) ScheduleReminder(ctx context.Context, adminChatID, taskID string, at time.Time) (*model.Reminder, error) {
	if _, err := s.requireAdmin(ctx, adminChatID); err != nil {
		return nil, err
	}
	if _, err := s.store.Tasks.FindByID(ctx, taskID); err != nil {
		return nil, err
	}
	if !at.After(s.clk.Now()) {
		return nil, apperrors.ErrInvalidDeadline
	}

	reminder := &model.Reminder{TaskID: taskID, RemindAt: at}
	if err := s.store.Reminders.Create(ctx, reminder); err != nil {
		return nil, err
	}
	return reminder, nil
}

// TaskDetail pairs a task with the newest comment on it, which carries the
// latest submission note or revision feedback.
type TaskDetail struct {
	Task          *model.Task    `json:"task"`
	LatestComment *model.Comment `json:"latest_comment,omitempty"`
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*TaskDetail, error) {
	task, err := s.store.Tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.Comments.Latest(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TaskDetail{Task: task, LatestComment: latest}, nil
}

// ListOpen returns the tasks anyone may still take.
func (s *TaskService) ListOpen(ctx context.Context) ([]model.Task, error) {
	return s.store.Tasks.List(ctx, repository.TaskFilter{
		Statuses: []constants.TaskStatus{constants.StatusOpen},
		OrderBy:  "deadline asc",
	})
}

// ListForUser returns the caller's working set: admins see every active
// task, regular users see the tasks they hold an active assignment on plus
// the broadcast tasks still running.
func (s *TaskService) ListForUser(ctx context.Context, chatID string) ([]model.Task, error) {
	user, err := s.activeUser(ctx, chatID)
	if err != nil {
		return nil, err
	}

	active := []constants.TaskStatus{
		constants.StatusAssigned,
		constants.StatusInProgress,
		constants.StatusRevision,
		constants.StatusOverdue,
	}

	if user.IsAdmin {
		return s.store.Tasks.List(ctx, repository.TaskFilter{Statuses: active})
	}

	assignments, err := s.store.Assignments.ListByUser(ctx, user.ID, active)
	if err != nil {
		return nil, err
	}
	own, err := s.store.Tasks.ListByIDs(ctx, taskIDs(assignments))
	if err != nil {
		return nil, err
	}

	broadcast, err := s.store.Tasks.List(ctx, repository.TaskFilter{
		Mode: constants.ModeBroadcast,
		Statuses: []constants.TaskStatus{
			constants.StatusOpen,
			constants.StatusInProgress,
			constants.StatusOverdue,
		},
	})
	if err != nil {
		return nil, err
	}

	return mergeTasks(own, broadcast), nil
}

// ListCompleted returns finished work: everything for admins, the caller's
// own for everyone else.
func (s *TaskService) ListCompleted(ctx context.Context, chatID string) ([]model.Task, error) {
	user, err := s.activeUser(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if user.IsAdmin {
		return s.store.Tasks.List(ctx, repository.TaskFilter{
			Statuses: []constants.TaskStatus{constants.StatusCompleted},
			OrderBy:  "completed_at desc",
		})
	}

	assignments, err := s.store.Assignments.ListByUser(ctx, user.ID,
		[]constants.TaskStatus{constants.StatusCompleted})
	if err != nil {
		return nil, err
	}
	return s.store.Tasks.ListByIDs(ctx, taskIDs(assignments))
}

// ListOverdue returns tasks past their deadline, most urgent first.
func (s *TaskService) ListOverdue(ctx context.Context, chatID string) ([]model.Task, error) {
	user, err := s.activeUser(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if user.IsAdmin {
		return s.store.Tasks.List(ctx, repository.TaskFilter{
			Statuses: []constants.TaskStatus{constants.StatusOverdue},
			OrderBy:  "deadline asc",
		})
	}

	assignments, err := s.store.Assignments.ListByUser(ctx, user.ID,
		[]constants.TaskStatus{constants.StatusOverdue})
	if err != nil {
		return nil, err
	}
	return s.store.Tasks.ListByIDs(ctx, taskIDs(assignments))
}

// ListByAssignee is the admin view of one user's workload across every
// status.
func (s *TaskService) ListByAssignee(ctx context.Context, adminChatID, assigneeChatID string) ([]model.Task, error) {
	if _, err := s.requireAdmin(ctx, adminChatID); err != nil {
		return nil, err
	}
	assignee, err := s.store.Users.FindByChatID(ctx, assigneeChatID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.Assignments.ListByUser(ctx, assignee.ID, nil)
	if err != nil {
		return nil, err
	}
	return s.store.Tasks.ListByIDs(ctx, taskIDs(assignments))
}

func (s *TaskService) activeUser(ctx context.Context, chatID string) (*model.User, error) {
	user, err := s.store.Users.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.ErrUserInactive
	}
	return user, nil
}

func (s *TaskService) requireAdmin(ctx context.Context, chatID string) (*model.User, error) {
	user, err := s.activeUser(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, apperrors.ErrPermissionDenied
	}
	return user, nil
}

func (s *TaskService) send(ctx context.Context, target, text, action string) {
	err := s.notifier.Notify(ctx, notify.Message{Target: target, Text: text, Action: action})
	if err != nil {
		s.log.Warn("notification delivery failed",
			zap.String("target", target),
			zap.Error(err))
	}
}

func (s *TaskService) notifyUserID(ctx context.Context, userID, text, action string) {
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		s.log.Warn("notification skipped, recipient unknown",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	if !user.NotificationEnabled {
		return
	}
	s.send(ctx, user.ChatID, text, action)
}

func taskIDs(assignments []model.Assignment) []string {
	ids := make([]string, 0, len(assignments))
	for i := range assignments {
		ids = append(ids, assignments[i].TaskID)
	}
	return ids
}

func mergeTasks(a, b []model.Task) []model.Task {
	seen := make(map[string]struct{}, len(a))
	merged := make([]model.Task, 0, len(a)+len(b))
	for _, t := range a {
		seen[t.ID] = struct{}{}
		merged = append(merged, t)
	}
	for _, t := range b {
		if _, dup := seen[t.ID]; !dup {
			merged = append(merged, t)
		}
	}
	return merged
}
