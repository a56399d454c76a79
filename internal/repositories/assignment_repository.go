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

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) withTx(tx *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: tx}
}

// Create is atomic-create-or-fail: the unique (task_id, user_id) index turns
// a concurrent duplicate into ErrTaskAlreadyTaken instead of a second row.
func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).Create(a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrTaskAlreadyTaken
		}
		return err
	}
	return nil
}

func (r *AssignmentRepository) Find(ctx context.Context, taskID, userID string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.WithContext(ctx).
		First(&a, "task_id = ? AND user_id = ?", taskID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssignmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) ListByTask(ctx context.Context, taskID string) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("assigned_at asc").
		Find(&list).Error
	return list, err
}

func (r *AssignmentRepository) ListByUser(
	ctx context.Context,
	userID string,
	statuses []constants.TaskStatus,
) ([]model.Assignment, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var list []model.Assignment
	err := query.Order("assigned_at desc").Find(&list).Error
	return list, err
}

// UpdateStatusIf flips one assignment's status only from an expected set.
func (r *AssignmentRepository) UpdateStatusIf(
	ctx context.Context,
	assignmentID string,
	from []constants.TaskStatus,
	to constants.TaskStatus,
) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ? AND status IN ?", assignmentID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkAccepted sets the acknowledge-receipt flag. A second call loses the
// conditional write and reports false, which surfaces as "already accepted".
func (r *AssignmentRepository) MarkAccepted(ctx context.Context, assignmentID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ? AND accepted = ?", assignmentID, false).
		Updates(map[string]interface{}{
			"accepted":    true,
			"accepted_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AssignmentRepository) Complete(ctx context.Context, assignmentID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ? AND status = ?", assignmentID, constants.StatusSubmitted).
		Updates(map[string]interface{}{
			"status":       constants.StatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AssignmentRepository) Revise(ctx context.Context, assignmentID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ? AND status = ?", assignmentID, constants.StatusSubmitted).
		Update("status", constants.StatusRevision)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkOverdueIf flips one assignment past its deadline. Submitted rows are
// spared so a pending review survives the sweep.
func (r *AssignmentRepository) MarkOverdueIf(ctx context.Context, assignmentID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ? AND status NOT IN ?", assignmentID,
			[]constants.TaskStatus{
				constants.StatusCompleted,
				constants.StatusOverdue,
				constants.StatusSubmitted,
			}).
		Update("status", constants.StatusOverdue)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
