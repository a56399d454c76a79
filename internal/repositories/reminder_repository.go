package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	model "taskforce-bot.com/taskforce-bot/internal/models"
)

type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) withTx(tx *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: tx}
}

func (r *ReminderRepository) Create(ctx context.Context, rem *model.Reminder) error {
	if rem.ID == "" {
		rem.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(rem).Error
}

func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	var list []model.Reminder
	err := r.db.WithContext(ctx).
		Where("sent = ? AND remind_at <= ?", false, now).
		Order("remind_at asc").
		Find(&list).Error
	return list, err
}

// ClaimSent marks a reminder fired. The conditional write keeps overlapping
// sweeps from sending the same reminder twice.
func (r *ReminderRepository) ClaimSent(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ? AND sent = ?", id, false).
		Update("sent", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
