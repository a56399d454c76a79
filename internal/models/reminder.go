package model

import "time"

// Reminder is a one-shot scheduled notification tied to a task. Sent is
// claimed with a conditional update before the notification goes out.
type Reminder struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	TaskID   string    `gorm:"size:36;not null;index" json:"task_id"`
	RemindAt time.Time `gorm:"not null;index" json:"remind_at"`
	Sent     bool      `gorm:"not null;default:false" json:"sent"`
}
