package model

import "time"

// User is a chat participant, created on first contact and never hard-deleted.
type User struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	ChatID              string    `gorm:"uniqueIndex;size:64;not null" json:"chat_id"`
	FirstName           string    `json:"first_name"`
	Username            string    `json:"username,omitempty"`
	IsAdmin             bool      `gorm:"not null;default:false" json:"is_admin"`
	IsActive            bool      `gorm:"not null;default:true" json:"is_active"`
	NotificationEnabled bool      `gorm:"not null;default:true" json:"notification_enabled"`
	CreatedAt           time.Time `json:"created_at"`
	LastSeenAt          time.Time `json:"last_seen_at"`
}

func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.FirstName + " (@" + u.Username + ")"
	}
	return u.FirstName
}
