package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
)

func TestIdentifyUser_CreatesOnFirstContact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.IdentifyUser(ctx, IdentifyParams{
		ChatID:    "chat-1",
		FirstName: "Alice",
		Username:  "alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.True(t, user.IsActive)
	require.True(t, user.NotificationEnabled)
	require.False(t, user.IsAdmin)

	env.clk.Advance(time.Hour)

	again, err := env.users.IdentifyUser(ctx, IdentifyParams{
		ChatID:    "chat-1",
		FirstName: "Alice",
		Username:  "alice_new",
	})
	require.NoError(t, err)
	require.Equal(t, user.ID, again.ID)

	stored, err := env.store.Users.FindByChatID(ctx, "chat-1")
	require.NoError(t, err)
	require.Equal(t, env.clk.Now(), stored.LastSeenAt.UTC())
}

func TestSetNotifications_Toggle(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "Alice", false)
	ctx := context.Background()

	require.NoError(t, env.users.SetNotifications(ctx, "alice", false))

	user, err := env.store.Users.FindByChatID(ctx, "alice")
	require.NoError(t, err)
	require.False(t, user.NotificationEnabled)

	require.NoError(t, env.users.SetNotifications(ctx, "alice", true))
	user, err = env.store.Users.FindByChatID(ctx, "alice")
	require.NoError(t, err)
	require.True(t, user.NotificationEnabled)
}

func TestDeactivate_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Admin", true)
	env.seedUser(t, "alice", "Alice", false)
	env.seedUser(t, "bob", "Bob", false)
	ctx := context.Background()

	err := env.users.Deactivate(ctx, "bob", "alice")
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	require.NoError(t, env.users.Deactivate(ctx, "admin", "alice"))

	user, err := env.store.Users.FindByChatID(ctx, "alice")
	require.NoError(t, err)
	require.False(t, user.IsActive)

	// Deactivated users drop out of the assignee picker.
	assignable, err := env.users.ListAssignableUsers(ctx)
	require.NoError(t, err)
	require.Len(t, assignable, 1)
	require.Equal(t, "bob", assignable[0].ChatID)
}
