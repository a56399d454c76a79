package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskforce-bot.com/taskforce-bot/internal/constants"
	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
	model "taskforce-bot.com/taskforce-bot/internal/models"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) withTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

// TaskFilter is the fixed query surface for task listings. Handlers pass
// explicit filters; there are no ad-hoc per-call query closures.
type TaskFilter struct {
	Statuses       []constants.TaskStatus
	CreatorID      string
	AssigneeID     string
	Mode           constants.TargetingMode
	DeadlineBefore *time.Time
	DeadlineAfter  *time.Time
	CreatedAfter   *time.Time
	CompletedAfter *time.Time
	OrderBy        string
	Limit          int
}

func (f TaskFilter) apply(query *gorm.DB) *gorm.DB {
	if len(f.Statuses) > 0 {
		query = query.Where("status IN ?", f.Statuses)
	}
	if f.CreatorID != "" {
		query = query.Where("creator_id = ?", f.CreatorID)
	}
	if f.AssigneeID != "" {
		query = query.Where("assignee_id = ?", f.AssigneeID)
	}
	if f.Mode != "" {
		query = query.Where("mode = ?", f.Mode)
	}
	if f.DeadlineBefore != nil {
		query = query.Where("deadline < ?", *f.DeadlineBefore)
	}
	if f.DeadlineAfter != nil {
		query = query.Where("deadline > ?", *f.DeadlineAfter)
	}
	if f.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CompletedAfter != nil {
		query = query.Where("completed_at >= ?", *f.CompletedAfter)
	}
	return query
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Version == 0 {
		task.Version = 1
	}
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query := filter.apply(r.db.WithContext(ctx).Model(&model.Task{}))

	order := filter.OrderBy
	if order == "" {
		order = "created_at desc"
	}
	query = query.Order(order)

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var tasks []model.Task
	err := query.Find(&tasks).Error
	return tasks, err
}

func (r *TaskRepository) ListByIDs(ctx context.Context, ids []string) ([]model.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at desc").
		Find(&tasks).Error
	return tasks, err
}

func (r *TaskRepository) Count(ctx context.Context, filter TaskFilter) (int64, error) {
	var n int64
	err := filter.apply(r.db.WithContext(ctx).Model(&model.Task{})).Count(&n).Error
	return n, err
}

// ClaimOpen is the take() race guard for single-assignee tasks: a compare
// and swap on "assignee is null and status is open". Exactly one concurrent
// caller wins; the rest see ErrTaskAlreadyTaken.
func (r *TaskRepository) ClaimOpen(ctx context.Context, taskID, userID string) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND assignee_id IS NULL AND status = ?", taskID, constants.StatusOpen).
		Updates(map[string]interface{}{
			"assignee_id": userID,
			"status":      constants.StatusInProgress,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTaskAlreadyTaken
	}
	return nil
}

// UpdateStatusIf flips the task status only when the current status is one
// of from. Returns false without error when another writer got there first.
func (r *TaskRepository) UpdateStatusIf(
	ctx context.Context,
	taskID string,
	from []constants.TaskStatus,
	to constants.TaskStatus,
) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status IN ?", taskID, from).
		Updates(map[string]interface{}{
			"status":  to,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetAggregateStatus stores the derived task-level status. No guard: the
// aggregate is read-only for transition decisions and may be overwritten.
func (r *TaskRepository) SetAggregateStatus(ctx context.Context, taskID string, status constants.TaskStatus) error {
	return r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":  status,
			"version": gorm.Expr("version + 1"),
		}).Error
}

func (r *TaskRepository) Complete(ctx context.Context, taskID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ?", taskID, constants.StatusSubmitted).
		Updates(map[string]interface{}{
			"status":       constants.StatusCompleted,
			"completed_at": at,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkCompleted completes a task regardless of the previous non-terminal
// status. Used when the assignment aggregate converges to completed; the
// per-task review path goes through Complete instead.
func (r *TaskRepository) MarkCompleted(ctx context.Context, taskID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status <> ?", taskID, constants.StatusCompleted).
		Updates(map[string]interface{}{
			"status":       constants.StatusCompleted,
			"completed_at": at,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkOverdueIf performs the automatic deadline_exceeded transition. It is
// idempotent: only the caller that flips the row reports true. Submitted
// work is spared, it was handed in on time and is waiting for review.
func (r *TaskRepository) MarkOverdueIf(ctx context.Context, taskID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status NOT IN ?", taskID,
			[]constants.TaskStatus{
				constants.StatusCompleted,
				constants.StatusOverdue,
				constants.StatusSubmitted,
			}).
		Updates(map[string]interface{}{
			"status":  constants.StatusOverdue,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Revise moves a submitted task back into the revision cycle with a fresh
// deadline and resets the warn marker so the new deadline is warned again.
func (r *TaskRepository) Revise(ctx context.Context, taskID string, newDeadline time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ?", taskID, constants.StatusSubmitted).
		Updates(map[string]interface{}{
			"status":         constants.StatusRevision,
			"deadline":       newDeadline,
			"warned_horizon": 0,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetDeadline moves the deadline and resets the warn marker so the new
// deadline gets fresh warnings. Used for fanout tasks where the revision
// guard lives on the assignments.
func (r *TaskRepository) SetDeadline(ctx context.Context, taskID string, deadline time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"deadline":       deadline,
			"warned_horizon": 0,
			"version":        gorm.Expr("version + 1"),
		}).Error
}

// ClaimWarnHorizon records that the given horizon was notified for the task.
// The conditional write is the idempotency marker: overlapping sweeps race
// on it and at most one wins per horizon transition.
func (r *TaskRepository) ClaimWarnHorizon(ctx context.Context, taskID string, horizon constants.Horizon) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND (warned_horizon = 0 OR warned_horizon > ?)", taskID, int(horizon)).
		Update("warned_horizon", int(horizon))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListDeadlineApproaching returns active tasks whose deadline falls inside
// the warning window for the horizon and that were not yet warned for it.
func (r *TaskRepository) ListDeadlineApproaching(
	ctx context.Context,
	now time.Time,
	horizon constants.Horizon,
) ([]model.Task, error) {
	threshold := now.Add(horizon.Duration())

	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("status IN ?", constants.ActiveStatuses).
		Where("deadline > ? AND deadline <= ?", now, threshold).
		Where("warned_horizon = 0 OR warned_horizon > ?", int(horizon)).
		Order("deadline asc").
		Find(&tasks).Error
	return tasks, err
}

// ListDeadlinePassed returns tasks whose deadline went by without a
// submission. Submitted tasks are excluded: work in review never goes
// overdue.
func (r *TaskRepository) ListDeadlinePassed(ctx context.Context, now time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []constants.TaskStatus{
			constants.StatusCompleted,
			constants.StatusOverdue,
			constants.StatusSubmitted,
		}).
		Where("deadline < ?", now).
		Order("deadline asc").
		Find(&tasks).Error
	return tasks, err
}

// Delete removes the task together with its assignments, comments and
// reminders in one transaction.
func (r *TaskRepository) Delete(ctx context.Context, taskID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Assignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Reminder{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", taskID).Delete(&model.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrTaskNotFound
		}
		return nil
	})
}
