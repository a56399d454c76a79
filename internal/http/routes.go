package http

import (
	"time"

	"github.com/labstack/echo/v4"

	middleware "taskforce-bot.com/taskforce-bot/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, rateLimitPerMinute int) {
	e.Use(middleware.RateLimiter(rateLimitPerMinute, time.Minute))

	e.POST("/tasks", h.CreateTask)
	e.GET("/tasks", h.ListTasks)
	e.GET("/tasks/:id", h.GetTask)
	e.DELETE("/tasks/:id", h.DeleteTask)

	e.POST("/tasks/:id/take", h.TakeTask)
	e.POST("/tasks/:id/accept-assignment", h.AcceptAssignment)
	e.POST("/tasks/:id/submit", h.SubmitTask)
	e.POST("/tasks/:id/accept", h.AcceptTask)
	e.POST("/tasks/:id/submissions/:chat_id/accept", h.AcceptSubmission)
	e.POST("/tasks/:id/revision", h.RequestRevision)
	e.POST("/tasks/:id/reminders", h.ScheduleReminder)

	e.POST("/users/identify", h.IdentifyUser)
	e.POST("/users/:chat_id/notifications", h.SetNotifications)

	e.GET("/reports/weekly", h.WeeklyReport)
	e.GET("/reports/summary", h.SummaryReport)
}
