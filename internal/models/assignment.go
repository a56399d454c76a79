package model

import (
	"time"

	"taskforce-bot.com/taskforce-bot/internal/constants"
)

// Assignment tracks one user's progress on one task. The (task, user) pair is
// unique; for single-assignee tasks at most one row ever exists.
type Assignment struct {
	ID          string               `gorm:"primaryKey;size:36" json:"id"`
	TaskID      string               `gorm:"size:36;not null;uniqueIndex:idx_task_user" json:"task_id"`
	UserID      string               `gorm:"size:36;not null;uniqueIndex:idx_task_user" json:"user_id"`
	Status      constants.TaskStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	AssignedAt  time.Time            `gorm:"not null" json:"assigned_at"`
	Accepted    bool                 `gorm:"not null;default:false" json:"accepted"`
	AcceptedAt  *time.Time           `json:"accepted_at,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

func (a *Assignment) IsActive() bool {
	switch a.Status {
	case constants.StatusCompleted, constants.StatusSubmitted:
		return false
	default:
		return true
	}
}
