package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"taskforce-bot.com/taskforce-bot/internal/clock"
	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
	model "taskforce-bot.com/taskforce-bot/internal/models"
	repository "taskforce-bot.com/taskforce-bot/internal/repositories"
)

// UserService registers chat participants on first contact and manages
// their notification and activity flags.
type UserService struct {
	store *repository.Store
	clk   clock.Clock
	log   *zap.Logger
}

func NewUserService(store *repository.Store, clk clock.Clock, log *zap.Logger) *UserService {
	return &UserService{store: store, clk: clk, log: log}
}

type IdentifyParams struct {
	ChatID    string
	FirstName string
	Username  string
	IsAdmin   bool
}

// IdentifyUser returns the user behind a chat id, creating the record on
// first contact. Known users get their profile refreshed and last_seen_at
// bumped; a concurrent first contact falls back to the winner's row.
func (s *UserService) IdentifyUser(ctx context.Context, p IdentifyParams) (*model.User, error) {
	user, err := s.store.Users.FindByChatID(ctx, p.ChatID)
	if err == nil {
		user.FirstName = p.FirstName
		user.Username = p.Username
		if touchErr := s.store.Users.Touch(ctx, user.ID, s.clk.Now()); touchErr != nil {
			return nil, touchErr
		}
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	now := s.clk.Now()
	user = &model.User{
		ChatID:              p.ChatID,
		FirstName:           p.FirstName,
		Username:            p.Username,
		IsAdmin:             p.IsAdmin,
		IsActive:            true,
		NotificationEnabled: true,
		CreatedAt:           now,
		LastSeenAt:          now,
	}
	if createErr := s.store.Users.Create(ctx, user); createErr != nil {
		// Someone else registered the same chat between our lookup and
		// the insert; their row wins.
		existing, findErr := s.store.Users.FindByChatID(ctx, p.ChatID)
		if findErr == nil {
			return existing, nil
		}
		return nil, createErr
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("chat_id", user.ChatID),
		zap.Bool("is_admin", user.IsAdmin))
	return user, nil
}

// SetNotifications toggles whether the user receives bot messages.
func (s *UserService) SetNotifications(ctx context.Context, chatID string, enabled bool) error {
	user, err := s.store.Users.FindByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	return s.store.Users.SetNotificationEnabled(ctx, user.ID, enabled)
}

// Deactivate flags a user inactive; their history stays intact.
func (s *UserService) Deactivate(ctx context.Context, adminChatID, chatID string) error {
	admin, err := s.store.Users.FindByChatID(ctx, adminChatID)
	if err != nil {
		return err
	}
	if !admin.IsAdmin || !admin.IsActive {
		return apperrors.ErrPermissionDenied
	}

	user, err := s.store.Users.FindByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.store.Users.Deactivate(ctx, user.ID); err != nil {
		return err
	}
	s.log.Info("user deactivated", zap.String("user_id", user.ID))
	return nil
}

// ListAssignableUsers returns the active non-admins an admin can pick as
// assignees.
func (s *UserService) ListAssignableUsers(ctx context.Context) ([]model.User, error) {
	return s.store.Users.ListAssignable(ctx)
}
