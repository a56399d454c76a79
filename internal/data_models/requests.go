package dto

import "taskforce-bot.com/taskforce-bot/internal/constants"

// CreateTaskRequest carries the admin's task form. Deadline is free text and
// resolved by the deadline parser.
type CreateTaskRequest struct {
	Title           string                  `json:"title" validate:"required,max=200"`
	Description     string                  `json:"description" validate:"required"`
	Deadline        string                  `json:"deadline" validate:"required"`
	Mode            constants.TargetingMode `json:"mode" validate:"required,oneof=single broadcast multi"`
	AssigneeChatID  string                  `json:"assignee_chat_id,omitempty"`
	AssigneeChatIDs []string                `json:"assignee_chat_ids,omitempty"`
	MediaFileID     string                  `json:"media_file_id,omitempty"`
	MediaType       constants.MediaType     `json:"media_type,omitempty" validate:"omitempty,oneof=photo video"`
}

type SubmitRequest struct {
	Comment string `json:"comment" validate:"required"`
}

type RevisionRequest struct {
	Deadline string `json:"deadline" validate:"required"`
	Comment  string `json:"comment,omitempty"`
}

type ReminderRequest struct {
	RemindAt string `json:"remind_at" validate:"required"`
}

type IdentifyRequest struct {
	ChatID    string `json:"chat_id" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	Username  string `json:"username,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
}

type NotificationsRequest struct {
	Enabled bool `json:"enabled"`
}
