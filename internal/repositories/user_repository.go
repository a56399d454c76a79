package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
	model "taskforce-bot.com/taskforce-bot/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) withTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByChatID(ctx context.Context, chatID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, "chat_id = ?", chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_seen_at", at).Error
}

// ListAdmins returns admins; with notifiableOnly set, only those who have
// notifications enabled.
func (r *UserRepository) ListAdmins(ctx context.Context, notifiableOnly bool) ([]model.User, error) {
	query := r.db.WithContext(ctx).Where("is_admin = ? AND is_active = ?", true, true)
	if notifiableOnly {
		query = query.Where("notification_enabled = ?", true)
	}

	var admins []model.User
	err := query.Find(&admins).Error
	return admins, err
}

// ListAssignable returns the active non-admin users offered in the assignee
// picker.
func (r *UserRepository) ListAssignable(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND is_admin = ?", true, false).
		Order("first_name asc").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("is_active = ?", true).
		Count(&n).Error
	return n, err
}

func (r *UserRepository) SetNotificationEnabled(ctx context.Context, id string, enabled bool) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("notification_enabled", enabled).Error
}

// Deactivate soft-deletes: users are never removed, only flagged inactive.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
