package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	model "taskforce-bot.com/taskforce-bot/internal/models"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) withTx(tx *gorm.DB) *CommentRepository {
	return &CommentRepository{db: tx}
}

func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CommentRepository) ListByTask(ctx context.Context, taskID string) ([]model.Comment, error) {
	var list []model.Comment
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at desc").
		Find(&list).Error
	return list, err
}

// Latest returns the newest comment on a task, or nil when there is none.
func (r *CommentRepository) Latest(ctx context.Context, taskID string) (*model.Comment, error) {
	var c model.Comment
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at desc").
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == "" {
		return nil, nil
	}
	return &c, nil
}
