package services

import (
	"time"

	"taskforce-bot.com/taskforce-bot/internal/constants"
	model "taskforce-bot.com/taskforce-bot/internal/models"
)

// FanoutResolver computes the assignment rows a new task starts with and the
// task's initial status, from its targeting mode.
//
// Policy for broadcast tasks: no rows are pre-created; each group member gets
// their own assignment lazily on first take or submit, the same shape as
// multi-select. The task stays visible to the whole channel the entire time.
type FanoutResolver struct{}

func NewFanoutResolver() *FanoutResolver {
	return &FanoutResolver{}
}

// Resolve returns the assignments to create alongside the task.
// assigneeIDs carries the chosen single assignee (len 1) or the multi-select
// set; it is empty for open single tasks and for broadcast tasks.
func (f *FanoutResolver) Resolve(
	task *model.Task,
	assigneeIDs []string,
	now time.Time,
) []model.Assignment {
	switch task.Mode {
	case constants.ModeSingle:
		if task.AssigneeID == nil {
			task.Status = constants.StatusOpen
			return nil
		}
		task.Status = constants.StatusAssigned
		return []model.Assignment{{
			TaskID:     task.ID,
			UserID:     *task.AssigneeID,
			Status:     constants.StatusAssigned,
			AssignedAt: now,
		}}

	case constants.ModeBroadcast:
		task.Status = constants.StatusOpen
		return nil

	case constants.ModeMulti:
		task.Status = constants.StatusAssigned
		assignments := make([]model.Assignment, 0, len(assigneeIDs))
		for _, userID := range assigneeIDs {
			assignments = append(assignments, model.Assignment{
				TaskID:     task.ID,
				UserID:     userID,
				Status:     constants.StatusAssigned,
				AssignedAt: now,
			})
		}
		return assignments

	default:
		task.Status = constants.StatusOpen
		return nil
	}
}

// DeriveAggregate computes the coarse task-level status from the assignment
// rows. The result is for list filtering only; transition guards must read
// assignment status, never this.
func DeriveAggregate(assignments []model.Assignment) constants.TaskStatus {
	if len(assignments) == 0 {
		return constants.StatusOpen
	}

	allCompleted := true
	anySubmitted := false
	anyStarted := false
	for _, a := range assignments {
		switch a.Status {
		case constants.StatusCompleted:
		case constants.StatusSubmitted:
			allCompleted = false
			anySubmitted = true
		case constants.StatusInProgress, constants.StatusRevision, constants.StatusOverdue:
			allCompleted = false
			anyStarted = true
		default:
			allCompleted = false
		}
	}

	switch {
	case allCompleted:
		return constants.StatusCompleted
	case anySubmitted:
		return constants.StatusSubmitted
	case anyStarted:
		return constants.StatusInProgress
	default:
		return constants.StatusAssigned
	}
}
