package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskforce-bot.com/taskforce-bot/internal/clock"
	"taskforce-bot.com/taskforce-bot/internal/constants"
	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
	model "taskforce-bot.com/taskforce-bot/internal/models"
	"taskforce-bot.com/taskforce-bot/internal/notify"
	repository "taskforce-bot.com/taskforce-bot/internal/repositories"
)

const deadlineLayout = "02.01.2006 15:04"

// LifecycleService owns the task and assignment state machine: it validates
// every transition against current state, performs the conditional writes,
// and fans out notifications. Notification delivery is fire-and-forget; a
// failed send is logged and never rolls a transition back.
type LifecycleService struct {
	store    *repository.Store
	notifier notify.Notifier
	clk      clock.Clock
	log      *zap.Logger
}

func NewLifecycleService(
	store *repository.Store,
	notifier notify.Notifier,
	clk clock.Clock,
	log *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		store:    store,
		notifier: notifier,
		clk:      clk,
		log:      log,
	}
}

// Take claims a task for the calling user.
//
// Single-mode open tasks are claimed with a storage-level compare-and-swap:
// two users racing here get exactly one winner, the loser sees
// ErrTaskAlreadyTaken. Broadcast tasks get a lazy per-user assignment.
// Pre-assigned single and multi tasks move the caller's own assignment into
// progress.
func (s *LifecycleService) Take(ctx context.Context, chatID, taskID string) (*model.Assignment, error) {
	user, err := s.identify(ctx, chatID)
	if err != nil {
		return nil, err
	}

	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsTerminal() {
		return nil, apperrors.ErrInvalidTransition
	}

	var assignment *model.Assignment
	switch {
	case task.Mode == constants.ModeSingle && task.AssigneeID == nil:
		assignment, err = s.takeOpenSingle(ctx, task, user)
	case task.Mode == constants.ModeBroadcast:
		assignment, err = s.takeBroadcast(ctx, task, user)
	default:
		assignment, err = s.startOwnAssignment(ctx, task, user)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("task taken",
		zap.String("task_id", task.ID),
		zap.String("user_id", user.ID),
		zap.String("mode", string(task.Mode)))
	s.notifyUserID(ctx, task.CreatorID,
		fmt.Sprintf("Task «%s» was taken by %s.", task.Title, user.DisplayName()), "")

	return assignment, nil
}

// takeOpenSingle claims the task and creates the winner's assignment in one
// transaction: the claim never commits without its assignment row.
func (s *LifecycleService) takeOpenSingle(ctx context.Context, task *model.Task, user *model.User) (*model.Assignment, error) {
	assignment := &model.Assignment{
		TaskID:     task.ID,
		UserID:     user.ID,
		Status:     constants.StatusInProgress,
		AssignedAt: s.clk.Now(),
	}
	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		if claimErr := tx.Tasks.ClaimOpen(ctx, task.ID, user.ID); claimErr != nil {
			return claimErr
		}
		return tx.Assignments.Create(ctx, assignment)
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *LifecycleService) takeBroadcast(ctx context.Context, task *model.Task, user *model.User) (*model.Assignment, error) {
	assignment := &model.Assignment{
		TaskID:     task.ID,
		UserID:     user.ID,
		Status:     constants.StatusInProgress,
		AssignedAt: s.clk.Now(),
	}
	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		if createErr := tx.Assignments.Create(ctx, assignment); createErr != nil {
			return createErr
		}
		// First take flips the broadcast task out of open. Losing this
		// write is fine, someone else flipped it already.
		if task.Status == constants.StatusOpen {
			if _, updErr := tx.Tasks.UpdateStatusIf(ctx, task.ID,
				[]constants.TaskStatus{constants.StatusOpen}, constants.StatusInProgress); updErr != nil {
				return updErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *LifecycleService) startOwnAssignment(ctx context.Context, task *model.Task, user *model.User) (*model.Assignment, error) {
	assignment, err := s.store.Assignments.Find(ctx, task.ID, user.ID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.Assignments.UpdateStatusIf(ctx, assignment.ID,
		[]constants.TaskStatus{constants.StatusAssigned, constants.StatusRevision},
		constants.StatusInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrInvalidTransition
	}
	assignment.Status = constants.StatusInProgress

	if err := s.recomputeAggregate(ctx, s.store, task); err != nil {
		return nil, err
	}
	return assignment, nil
}

// AcceptAssignment acknowledges receipt of an assignment. Accepting twice is
// reported as "already accepted", not treated as a hard failure.
func (s *LifecycleService) AcceptAssignment(ctx context.Context, chatID, taskID string) (*model.Assignment, error) {
	user, err := s.identify(ctx, chatID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	assignment, err := s.store.Assignments.Find(ctx, taskID, user.ID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	ok, err := s.store.Assignments.MarkAccepted(ctx, assignment.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrAlreadyAccepted
	}
	assignment.Accepted = true
	assignment.AcceptedAt = &now

	s.notifyUserID(ctx, task.CreatorID,
		fmt.Sprintf("%s accepted the task «%s».", user.DisplayName(), task.Title), "")
	return assignment, nil
}

// Submit hands the caller's work in for review. A non-empty comment is
// required; the comment and the status flip commit in one transaction.
func (s *LifecycleService) Submit(ctx context.Context, chatID, taskID, comment string) (*model.Task, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, apperrors.ErrCommentRequired
	}

	user, err := s.identify(ctx, chatID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsTerminal() {
		return nil, apperrors.ErrInvalidTransition
	}

	err = s.store.Atomic(ctx, func(tx *repository.Store) error {
		assignment, findErr := tx.Assignments.Find(ctx, taskID, user.ID)
		if findErr != nil {
			if task.Mode != constants.ModeBroadcast || !errors.Is(findErr, apperrors.ErrAssignmentNotFound) {
				return findErr
			}
			// Broadcast submit without a prior take: create the lazy
			// assignment in the same transaction.
			assignment = &model.Assignment{
				TaskID:     taskID,
				UserID:     user.ID,
				Status:     constants.StatusInProgress,
				AssignedAt: s.clk.Now(),
			}
			if createErr := tx.Assignments.Create(ctx, assignment); createErr != nil {
				return createErr
			}
		}

		ok, updErr := tx.Assignments.UpdateStatusIf(ctx, assignment.ID,
			constants.SubmittableStatuses, constants.StatusSubmitted)
		if updErr != nil {
			return updErr
		}
		if !ok {
			return apperrors.ErrInvalidTransition
		}

		if commentErr := tx.Comments.Create(ctx, &model.Comment{
			TaskID:    taskID,
			UserID:    user.ID,
			Text:      comment,
			CreatedAt: s.clk.Now(),
		}); commentErr != nil {
			return commentErr
		}

		return s.recomputeAggregate(ctx, tx, task)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task submitted",
		zap.String("task_id", task.ID),
		zap.String("user_id", user.ID))
	s.notifyAdmins(ctx,
		fmt.Sprintf("%s submitted «%s» for review.\nComment: %s", user.DisplayName(), task.Title, comment),
		"review:"+task.ID)

	return s.store.Tasks.FindByID(ctx, taskID)
}

// Accept approves submitted work. For fanout tasks every currently submitted
// assignment is accepted; the task completes once all assignments are done.
func (s *LifecycleService) Accept(ctx context.Context, adminChatID, taskID string) (*model.Task, error) {
	if _, err := s.requireAdmin(ctx, adminChatID); err != nil {
		return nil, err
	}
	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	var completedUsers []string

	err = s.store.Atomic(ctx, func(tx *repository.Store) error {
		assignments, listErr := tx.Assignments.ListByTask(ctx, taskID)
		if listErr != nil {
			return listErr
		}

		accepted := 0
		for i := range assignments {
			if assignments[i].Status != constants.StatusSubmitted {
				continue
			}
			ok, complErr := tx.Assignments.Complete(ctx, assignments[i].ID, now)
			if complErr != nil {
				return complErr
			}
			if ok {
				accepted++
				completedUsers = append(completedUsers, assignments[i].UserID)
			}
		}
		if accepted == 0 {
			return apperrors.ErrInvalidTransition
		}

		if !task.HasFanout() {
			ok, complErr := tx.Tasks.Complete(ctx, taskID, now)
			if complErr != nil {
				return complErr
			}
			if !ok {
				return apperrors.ErrInvalidTransition
			}
			return nil
		}
		return s.recomputeAggregate(ctx, tx, task)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task accepted",
		zap.String("task_id", task.ID),
		zap.Int("assignments", len(completedUsers)))
	for _, userID := range completedUsers {
		s.notifyUserID(ctx, userID,
			fmt.Sprintf("Your work on «%s» was accepted. Well done!", task.Title), "")
	}

	return s.store.Tasks.FindByID(ctx, taskID)
}

// AcceptSubmission approves a single assignee's submission on a fanout task,
// leaving the other assignments untouched.
func (s *LifecycleService) AcceptSubmission(ctx context.Context, adminChatID, taskID, assigneeChatID string) (*model.Assignment, error) {
	if _, err := s.requireAdmin(ctx, adminChatID); err != nil {
		return nil, err
	}
	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.store.Users.FindByChatID(ctx, assigneeChatID)
	if err != nil {
		return nil, err
	}
	assignment, err := s.store.Assignments.Find(ctx, taskID, assignee.ID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	err = s.store.Atomic(ctx, func(tx *repository.Store) error {
		ok, complErr := tx.Assignments.Complete(ctx, assignment.ID, now)
		if complErr != nil {
			return complErr
		}
		if !ok {
			return apperrors.ErrInvalidTransition
		}
		return s.recomputeAggregate(ctx, tx, task)
	})
	if err != nil {
		return nil, err
	}
	assignment.Status = constants.StatusCompleted
	assignment.CompletedAt = &now

	s.notifyUserID(ctx, assignee.ID,
		fmt.Sprintf("Your work on «%s» was accepted. Well done!", task.Title), "")
	return assignment, nil
}

// RequestRevision bounces submitted work back with feedback and a new
// deadline. The deadline extension clears the overdue state and the warn
// markers, so the revision cycle gets fresh deadline warnings.
func (s *LifecycleService) RequestRevision(
	ctx context.Context,
	adminChatID, taskID string,
	newDeadline time.Time,
	comment string,
) (*model.Task, error) {
	admin, err := s.requireAdmin(ctx, adminChatID)
	if err != nil {
		return nil, err
	}
	if newDeadline.IsZero() {
		return nil, apperrors.ErrDeadlineRequired
	}
	if !newDeadline.After(s.clk.Now()) {
		return nil, apperrors.ErrInvalidDeadline
	}

	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var revisedUsers []string
	err = s.store.Atomic(ctx, func(tx *repository.Store) error {
		assignments, listErr := tx.Assignments.ListByTask(ctx, taskID)
		if listErr != nil {
			return listErr
		}

		revised := 0
		for i := range assignments {
			if assignments[i].Status != constants.StatusSubmitted {
				continue
			}
			ok, revErr := tx.Assignments.Revise(ctx, assignments[i].ID)
			if revErr != nil {
				return revErr
			}
			if ok {
				revised++
				revisedUsers = append(revisedUsers, assignments[i].UserID)
			}
		}
		if revised == 0 {
			return apperrors.ErrInvalidTransition
		}

		if !task.HasFanout() {
			ok, taskErr := tx.Tasks.Revise(ctx, taskID, newDeadline)
			if taskErr != nil {
				return taskErr
			}
			if !ok {
				return apperrors.ErrInvalidTransition
			}
		} else {
			if taskErr := tx.Tasks.SetDeadline(ctx, taskID, newDeadline); taskErr != nil {
				return taskErr
			}
			if aggErr := s.recomputeAggregate(ctx, tx, task); aggErr != nil {
				return aggErr
			}
		}

		if strings.TrimSpace(comment) == "" {
			return nil
		}
		return tx.Comments.Create(ctx, &model.Comment{
			TaskID:    taskID,
			UserID:    admin.ID,
			Text:      comment,
			CreatedAt: s.clk.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task sent to revision",
		zap.String("task_id", task.ID),
		zap.Time("new_deadline", newDeadline))

	text := fmt.Sprintf("Task «%s» needs revision.\nNew deadline: %s",
		task.Title, newDeadline.Format(deadlineLayout))
	if strings.TrimSpace(comment) != "" {
		text += "\nFeedback: " + comment
	}
	for _, userID := range revisedUsers {
		s.notifyUserID(ctx, userID, text, "task:"+task.ID)
	}

	return s.store.Tasks.FindByID(ctx, taskID)
}

// DeadlineExceeded flips a task past its deadline into overdue. It is
// idempotent: only the call that wins the conditional write notifies, so
// overlapping sweeps produce at most one alert.
func (s *LifecycleService) DeadlineExceeded(ctx context.Context, taskID string) (bool, error) {
	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return false, err
	}

	claimed, err := s.store.Tasks.MarkOverdueIf(ctx, taskID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	assignments, err := s.store.Assignments.ListByTask(ctx, taskID)
	if err != nil {
		return true, err
	}
	for i := range assignments {
		if _, err := s.store.Assignments.MarkOverdueIf(ctx, assignments[i].ID); err != nil {
			return true, err
		}
	}

	s.log.Info("task overdue",
		zap.String("task_id", task.ID),
		zap.Time("deadline", task.Deadline))

	text := fmt.Sprintf("Task «%s» is overdue!\nThe deadline was: %s",
		task.Title, task.Deadline.Format(deadlineLayout))
	s.notifyAssignees(ctx, task, assignments, text, "task:"+task.ID)
	s.notifyAdmins(ctx, text, "task:"+task.ID)

	return true, nil
}

// recomputeAggregate refreshes the coarse task-level status from the
// assignment rows. Guards never read the result.
func (s *LifecycleService) recomputeAggregate(ctx context.Context, tx *repository.Store, task *model.Task) error {
	assignments, err := tx.Assignments.ListByTask(ctx, task.ID)
	if err != nil {
		return err
	}

	derived := DeriveAggregate(assignments)
	if derived == constants.StatusCompleted {
		_, err = tx.Tasks.MarkCompleted(ctx, task.ID, s.clk.Now())
		return err
	}
	return tx.Tasks.SetAggregateStatus(ctx, task.ID, derived)
}

func (s *LifecycleService) identify(ctx context.Context, chatID string) (*model.User, error) {
	user, err := s.store.Users.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.ErrUserInactive
	}
	return user, nil
}

func (s *LifecycleService) requireAdmin(ctx context.Context, chatID string) (*model.User, error) {
	user, err := s.identify(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, apperrors.ErrPermissionDenied
	}
	return user, nil
}

// send pushes one notification and swallows the failure: delivery is
// at-most-once and must never fail the transition that produced it.
func (s *LifecycleService) send(ctx context.Context, target, text, action string) {
	err := s.notifier.Notify(ctx, notify.Message{Target: target, Text: text, Action: action})
	if err != nil {
		s.log.Warn("notification delivery failed",
			zap.String("target", target),
			zap.Error(err))
	}
}

func (s *LifecycleService) notifyUserID(ctx context.Context, userID, text, action string) {
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

func (s *LifecycleService) notifyAdmins(ctx context.Context, text, action string) {
	admins, err := s.store.Users.ListAdmins(ctx, true)
	if err != nil {
		s.log.Warn("admin notification skipped", zap.Error(err))
		return
	}
	for i := range admins {
		s.send(ctx, admins[i].ChatID, text, action)
	}
}

// notifyAssignees messages every user still holding an active assignment on
// the task, or the single assignee when no rows exist yet. Users whose
// assignment is completed or in review get no alert.
func (s *LifecycleService) notifyAssignees(
	ctx context.Context,
	task *model.Task,
	assignments []model.Assignment,
	text, action string,
) {
	if len(assignments) == 0 {
		if task.AssigneeID != nil {
			s.notifyUserID(ctx, *task.AssigneeID, text, action)
		}
		return
	}
	for i := range assignments {
		if !assignments[i].IsActive() {
			continue
		}
		s.notifyUserID(ctx, assignments[i].UserID, text, action)
	}
}
