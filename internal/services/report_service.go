package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskforce-bot.com/taskforce-bot/internal/clock"
	"taskforce-bot.com/taskforce-bot/internal/constants"
	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
	"taskforce-bot.com/taskforce-bot/internal/notify"
	repository "taskforce-bot.com/taskforce-bot/internal/repositories"
)

// ReportService aggregates task counters for the admin stats views and the
// weekly digest.
type ReportService struct {
	store    *repository.Store
	notifier notify.Notifier
	clk      clock.Clock
	log      *zap.Logger
}

func NewReportService(store *repository.Store, notifier notify.Notifier, clk clock.Clock, log *zap.Logger) *ReportService {
	return &ReportService{store: store, notifier: notifier, clk: clk, log: log}
}

type WeeklyStats struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Created     int64     `json:"created"`
	Completed   int64     `json:"completed"`
	Overdue     int64     `json:"overdue"`
	ActiveUsers int64     `json:"active_users"`
}

type OverallStats struct {
	Total       int64     `json:"total"`
	Open        int64     `json:"open"`
	InProgress  int64     `json:"in_progress"`
	Submitted   int64     `json:"submitted"`
	Completed   int64     `json:"completed"`
	Overdue     int64     `json:"overdue"`
	ActiveUsers int64     `json:"active_users"`
	At          time.Time `json:"at"`
}

// Weekly builds the last-seven-days digest.
func (s *ReportService) Weekly(ctx context.Context, adminChatID string) (*WeeklyStats, error) {
	if err := s.requireAdmin(ctx, adminChatID); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	from := now.AddDate(0, 0, -7)
	stats := &WeeklyStats{From: from, To: now}

	var err error
	if stats.Created, err = s.store.Tasks.Count(ctx, repository.TaskFilter{CreatedAfter: &from}); err != nil {
		return nil, err
	}
	if stats.Completed, err = s.store.Tasks.Count(ctx, repository.TaskFilter{
		Statuses:       []constants.TaskStatus{constants.StatusCompleted},
		CompletedAfter: &from,
	}); err != nil {
		return nil, err
	}
	if stats.Overdue, err = s.store.Tasks.Count(ctx, repository.TaskFilter{
		Statuses: []constants.TaskStatus{constants.StatusOverdue},
	}); err != nil {
		return nil, err
	}
	if stats.ActiveUsers, err = s.store.Users.CountActive(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}

// Overall builds the all-time status breakdown.
func (s *ReportService) Overall(ctx context.Context, adminChatID string) (*OverallStats, error) {
	if err := s.requireAdmin(ctx, adminChatID); err != nil {
		return nil, err
	}

	stats := &OverallStats{At: s.clk.Now()}

	counts := []struct {
		dst      *int64
		statuses []constants.TaskStatus
	}{
		{&stats.Total, nil},
		{&stats.Open, []constants.TaskStatus{constants.StatusOpen}},
		{&stats.InProgress, []constants.TaskStatus{
			constants.StatusAssigned, constants.StatusInProgress, constants.StatusRevision,
		}},
		{&stats.Submitted, []constants.TaskStatus{constants.StatusSubmitted}},
		{&stats.Completed, []constants.TaskStatus{constants.StatusCompleted}},
		{&stats.Overdue, []constants.TaskStatus{constants.StatusOverdue}},
	}
	for _, c := range counts {
		n, err := s.store.Tasks.Count(ctx, repository.TaskFilter{Statuses: c.statuses})
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	var err error
	if stats.ActiveUsers, err = s.store.Users.CountActive(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}

// SendWeeklyDigest pushes the weekly digest to every notifiable admin. The
// scheduler calls this on its weekly tick.
func (s *ReportService) SendWeeklyDigest(ctx context.Context) error {
	now := s.clk.Now()
	from := now.AddDate(0, 0, -7)

	created, err := s.store.Tasks.Count(ctx, repository.TaskFilter{CreatedAfter: &from})
	if err != nil {
		return err
	}
	completed, err := s.store.Tasks.Count(ctx, repository.TaskFilter{
		Statuses:       []constants.TaskStatus{constants.StatusCompleted},
		CompletedAfter: &from,
	})
	if err != nil {
		return err
	}
	overdue, err := s.store.Tasks.Count(ctx, repository.TaskFilter{
		Statuses: []constants.TaskStatus{constants.StatusOverdue},
	})
	if err != nil {
		return err
	}

	admins, err := s.store.Users.ListAdmins(ctx, true)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("Weekly digest\nCreated: %d\nCompleted: %d\nCurrently overdue: %d",
		created, completed, overdue)
	for i := range admins {
		msg := notify.Message{Target: admins[i].ChatID, Text: text, Action: "stats:weekly"}
		if sendErr := s.notifier.Notify(ctx, msg); sendErr != nil {
			s.log.Warn("weekly digest delivery failed",
				zap.String("target", admins[i].ChatID),
				zap.Error(sendErr))
		}
	}
	return nil
}

func (s *ReportService) requireAdmin(ctx context.Context, chatID string) error {
	user, err := s.store.Users.FindByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	if !user.IsAdmin || !user.IsActive {
		return apperrors.ErrPermissionDenied
	}
	return nil
}
