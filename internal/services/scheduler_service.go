package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskforce-bot.com/taskforce-bot/internal/clock"
	"taskforce-bot.com/taskforce-bot/internal/constants"
	model "taskforce-bot.com/taskforce-bot/internal/models"
	"taskforce-bot.com/taskforce-bot/internal/notify"
	repository "taskforce-bot.com/taskforce-bot/internal/repositories"
)

// SchedulerCadence sets how often each background sweep runs.
type SchedulerCadence struct {
	Warn48h   time.Duration
	Warn24h   time.Duration
	Warn1h    time.Duration
	Overdue   time.Duration
	Reminders time.Duration
	Digest    time.Duration
}

func DefaultCadence() SchedulerCadence {
	return SchedulerCadence{
		Warn48h:   time.Hour,
		Warn24h:   time.Hour,
		Warn1h:    15 * time.Minute,
		Overdue:   10 * time.Minute,
		Reminders: time.Minute,
		Digest:    7 * 24 * time.Hour,
	}
}

// DeadlineScheduler runs the periodic sweeps: deadline warnings per horizon,
// overdue detection, one-shot reminders and the weekly digest. Every sweep
// claims its work through a conditional write first, so overlapping or
// restarted sweeps never notify twice.
type DeadlineScheduler struct {
	store     *repository.Store
	lifecycle *LifecycleService
	report    *ReportService
	notifier  notify.Notifier
	clk       clock.Clock
	log       *zap.Logger
	cadence   SchedulerCadence

	wg   sync.WaitGroup
	stop chan struct{}
}

func NewDeadlineScheduler(
	store *repository.Store,
	lifecycle *LifecycleService,
	report *ReportService,
	notifier notify.Notifier,
	clk clock.Clock,
	log *zap.Logger,
	cadence SchedulerCadence,
) *DeadlineScheduler {
	return &DeadlineScheduler{
		store:     store,
		lifecycle: lifecycle,
		report:    report,
		notifier:  notifier,
		clk:       clk,
		log:       log,
		cadence:   cadence,
		stop:      make(chan struct{}),
	}
}

// Start launches one loop per sweep. Call Shutdown to stop them.
func (d *DeadlineScheduler) Start() {
	d.loop(d.cadence.Warn48h, func(ctx context.Context) { d.sweep(ctx, constants.Horizon48h) })
	d.loop(d.cadence.Warn24h, func(ctx context.Context) { d.sweep(ctx, constants.Horizon24h) })
	d.loop(d.cadence.Warn1h, func(ctx context.Context) { d.sweep(ctx, constants.Horizon1h) })
	d.loop(d.cadence.Overdue, func(ctx context.Context) { d.sweep(ctx, constants.HorizonOverdue) })
	d.loop(d.cadence.Reminders, func(ctx context.Context) {
		if _, err := d.RunReminderSweep(ctx); err != nil {
			d.log.Error("reminder sweep failed", zap.Error(err))
		}
	})
	if d.report != nil {
		d.loop(d.cadence.Digest, func(ctx context.Context) {
			if err := d.report.SendWeeklyDigest(ctx); err != nil {
				d.log.Error("weekly digest failed", zap.Error(err))
			}
		})
	}
	d.log.Info("deadline scheduler started")
}

func (d *DeadlineScheduler) loop(every time.Duration, fn func(ctx context.Context)) {
	if every <= 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn(context.Background())
			case <-d.stop:
				return
			}
		}
	}()
}

func (d *DeadlineScheduler) sweep(ctx context.Context, horizon constants.Horizon) {
	report, err := d.RunSweep(ctx, horizon)
	if err != nil {
		d.log.Error("deadline sweep failed",
			zap.String("horizon", horizon.String()),
			zap.Error(err))
		return
	}
	if report.Notified > 0 {
		d.log.Info("deadline sweep",
			zap.String("horizon", horizon.String()),
			zap.Int("scanned", report.Scanned),
			zap.Int("notified", report.Notified),
			zap.Int("escalated", report.Escalated))
	}
}

// SweepReport summarizes one pass over a horizon.
type SweepReport struct {
	Horizon   constants.Horizon `json:"horizon"`
	Scanned   int               `json:"scanned"`
	Notified  int               `json:"notified"`
	Escalated int               `json:"escalated"`
}

// RunSweep executes a single sweep for the horizon. Pre-deadline horizons
// warn assignees of tasks entering the window; HorizonOverdue flips tasks
// past their deadline into overdue.
func (d *DeadlineScheduler) RunSweep(ctx context.Context, horizon constants.Horizon) (SweepReport, error) {
	if horizon == constants.HorizonOverdue {
		return d.runOverdueSweep(ctx)
	}
	return d.runWarnSweep(ctx, horizon)
}

func (d *DeadlineScheduler) runWarnSweep(ctx context.Context, horizon constants.Horizon) (SweepReport, error) {
	report := SweepReport{Horizon: horizon}

	now := d.clk.Now()
	tasks, err := d.store.Tasks.ListDeadlineApproaching(ctx, now, horizon)
	if err != nil {
		return report, err
	}
	report.Scanned = len(tasks)

	for i := range tasks {
		task := &tasks[i]

		claimed, err := d.store.Tasks.ClaimWarnHorizon(ctx, task.ID, horizon)
		if err != nil {
			return report, err
		}
		if !claimed {
			continue
		}

		d.warn(ctx, task, horizon)
		report.Notified++
		if horizon.EscalatesToAdmins() {
			report.Escalated++
		}
	}
	return report, nil
}

func (d *DeadlineScheduler) runOverdueSweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{Horizon: constants.HorizonOverdue}

	tasks, err := d.store.Tasks.ListDeadlinePassed(ctx, d.clk.Now())
	if err != nil {
		return report, err
	}
	report.Scanned = len(tasks)

	for i := range tasks {
		flipped, err := d.lifecycle.DeadlineExceeded(ctx, tasks[i].ID)
		if err != nil {
			return report, err
		}
		if flipped {
			report.Notified++
			report.Escalated++
		}
	}
	return report, nil
}

func (d *DeadlineScheduler) warn(ctx context.Context, task *model.Task, horizon constants.Horizon) {
	text := fmt.Sprintf("Reminder: «%s» is due in %s.\nDeadline: %s",
		task.Title, horizon.String(), task.Deadline.Format(deadlineLayout))
	action := "task:" + task.ID

	assignments, err := d.store.Assignments.ListByTask(ctx, task.ID)
	if err != nil {
		d.log.Warn("deadline warning skipped",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return
	}

	if len(assignments) == 0 && task.AssigneeID != nil {
		d.notifyUserID(ctx, *task.AssigneeID, text, action)
	}
	for i := range assignments {
		if !assignments[i].IsActive() {
			continue
		}
		d.notifyUserID(ctx, assignments[i].UserID, text, action)
	}

	if horizon.EscalatesToAdmins() {
		admins, err := d.store.Users.ListAdmins(ctx, true)
		if err != nil {
			d.log.Warn("admin escalation skipped", zap.Error(err))
			return
		}
		escalation := fmt.Sprintf("«%s» is due in %s and still not submitted.",
			task.Title, horizon.String())
		for i := range admins {
			d.send(ctx, admins[i].ChatID, escalation, action)
		}
	}
}

// RunReminderSweep fires due one-shot reminders. Sending is guarded by
// ClaimSent, so a reminder goes out at most once.
func (d *DeadlineScheduler) RunReminderSweep(ctx context.Context) (int, error) {
	due, err := d.store.Reminders.ListDue(ctx, d.clk.Now())
	if err != nil {
		return 0, err
	}

	fired := 0
	for i := range due {
		claimed, err := d.store.Reminders.ClaimSent(ctx, due[i].ID)
		if err != nil {
			return fired, err
		}
		if !claimed {
			continue
		}

		task, err := d.store.Tasks.FindByID(ctx, due[i].TaskID)
		if err != nil {
			d.log.Warn("reminder skipped, task gone",
				zap.String("reminder_id", due[i].ID),
				zap.Error(err))
			continue
		}
		if task.IsTerminal() {
			continue
		}

		text := fmt.Sprintf("Reminder: «%s»\nDeadline: %s",
			task.Title, task.Deadline.Format(deadlineLayout))
		action := "task:" + task.ID

		assignments, err := d.store.Assignments.ListByTask(ctx, task.ID)
		if err != nil {
			return fired, err
		}
		if len(assignments) == 0 && task.AssigneeID != nil {
			d.notifyUserID(ctx, *task.AssigneeID, text, action)
		}
		for j := range assignments {
			if assignments[j].IsActive() {
				d.notifyUserID(ctx, assignments[j].UserID, text, action)
			}
		}
		fired++
	}
	return fired, nil
}

func (d *DeadlineScheduler) notifyUserID(ctx context.Context, userID, text, action string) {
	user, err := d.store.Users.FindByID(ctx, userID)
	if err != nil {
		d.log.Warn("notification skipped, recipient unknown",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	if !user.NotificationEnabled {
		return
	}
	d.send(ctx, user.ChatID, text, action)
}

func (d *DeadlineScheduler) send(ctx context.Context, target, text, action string) {
	err := d.notifier.Notify(ctx, notify.Message{Target: target, Text: text, Action: action})
	if err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("target", target),
			zap.Error(err))
	}
}

// Shutdown stops the loops and waits for in-flight sweeps, bounded by ctx.
func (d *DeadlineScheduler) Shutdown(ctx context.Context) {
	close(d.stop)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info("deadline scheduler shut down cleanly")
	case <-ctx.Done():
		d.log.Warn("deadline scheduler shutdown timed out")
	}
}
