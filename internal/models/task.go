package model

import (
	"time"

	"taskforce-bot.com/taskforce-bot/internal/constants"
)

// Task is a unit of work with a deadline and a targeting mode. For broadcast
// and multi tasks the authoritative per-user state lives on Assignment; the
// task status is a coarse aggregate used for list filtering only.
type Task struct {
	ID          string                  `gorm:"primaryKey;size:36" json:"id"`
	Title       string                  `gorm:"not null" json:"title"`
	Description string                  `gorm:"not null" json:"description"`
	CreatorID   string                  `gorm:"size:36;not null;index" json:"creator_id"`
	AssigneeID  *string                 `gorm:"size:36;index" json:"assignee_id,omitempty"`
	Mode        constants.TargetingMode `gorm:"type:varchar(20);not null" json:"mode"`
	Status      constants.TaskStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	Deadline    time.Time               `gorm:"not null;index" json:"deadline"`
	MediaFileID string                  `json:"media_file_id,omitempty"`
	MediaType   constants.MediaType     `gorm:"type:varchar(10)" json:"media_type,omitempty"`

	// WarnedHorizon is the closest pre-deadline horizon (hours) already
	// notified for this task; 0 means none yet. Claimed with a conditional
	// update so overlapping sweeps cannot double-send.
	WarnedHorizon int `gorm:"not null;default:0" json:"-"`

	Version     uint       `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (t *Task) IsTerminal() bool {
	return t.Status == constants.StatusCompleted
}

// HasFanout reports whether per-user assignment rows carry this task's state.
func (t *Task) HasFanout() bool {
	return t.Mode == constants.ModeBroadcast || t.Mode == constants.ModeMulti
}
