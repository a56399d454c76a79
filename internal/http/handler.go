package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskforce-bot.com/taskforce-bot/internal/clock"
	dto "taskforce-bot.com/taskforce-bot/internal/data_models"
	"taskforce-bot.com/taskforce-bot/internal/deadline"
	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
	"taskforce-bot.com/taskforce-bot/internal/http/validators"
	"taskforce-bot.com/taskforce-bot/internal/services"
)

// chatIDHeader carries the caller's chat identity. The bot transport sits in
// front of this API and is trusted; there is no further auth here.
const chatIDHeader = "X-Chat-ID"

type Handler struct {
	tasks     *services.TaskService
	lifecycle *services.LifecycleService
	users     *services.UserService
	reports   *services.ReportService
	deadlines *deadline.Parser
	clk       clock.Clock
}

func NewHandler(
	tasks *services.TaskService,
	lifecycle *services.LifecycleService,
	users *services.UserService,
	reports *services.ReportService,
	deadlines *deadline.Parser,
	clk clock.Clock,
) *Handler {
	return &Handler{
		tasks:     tasks,
		lifecycle: lifecycle,
		users:     users,
		reports:   reports,
		deadlines: deadlines,
		clk:       clk,
	}
}

func (h *Handler) CreateTask(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}

	var req dto.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.Check(&req); err != nil {
		return err
	}

	due, err := h.deadlines.Parse(req.Deadline, h.clk.Now())
	if err != nil {
		return toHTTPError(err)
	}

	task, err := h.tasks.CreateTask(c.Request().Context(), chatID, services.CreateTaskParams{
		Title:           req.Title,
		Description:     req.Description,
		Deadline:        due,
		Mode:            req.Mode,
		AssigneeChatID:  req.AssigneeChatID,
		AssigneeChatIDs: req.AssigneeChatIDs,
		MediaFileID:     req.MediaFileID,
		MediaType:       req.MediaType,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *Handler) GetTask(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return toHTTPError(apperrors.ErrTaskIDRequired)
	}
	detail, err := h.tasks.GetTask(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

// ListTasks is the role-aware listing behind the bot menus. The view query
// parameter picks the slice: my (default), open, completed, overdue, or
// assignee=<chat_id> for the admin workload view.
func (h *Handler) ListTasks(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var (
		tasks interface{}
		lerr  error
	)
	if assignee := c.QueryParam("assignee"); assignee != "" {
		tasks, lerr = h.tasks.ListByAssignee(ctx, chatID, assignee)
	} else {
		switch c.QueryParam("view") {
		case "open":
			tasks, lerr = h.tasks.ListOpen(ctx)
		case "completed":
			tasks, lerr = h.tasks.ListCompleted(ctx, chatID)
		case "overdue":
			tasks, lerr = h.tasks.ListOverdue(ctx, chatID)
		default:
			tasks, lerr = h.tasks.ListForUser(ctx, chatID)
		}
	}
	if lerr != nil {
		return toHTTPError(lerr)
	}
	return c.JSON(http.StatusOK, echo.Map{"tasks": tasks})
}

func (h *Handler) TakeTask(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}
	assignment, err := h.lifecycle.Take(c.Request().Context(), chatID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, assignment)
}

func (h *Handler) AcceptAssignment(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}
	assignment, err := h.lifecycle.AcceptAssignment(c.Request().Context(), chatID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, assignment)
}

func (h *Handler) SubmitTask(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}

	var req dto.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.Check(&req); err != nil {
		return err
	}

	task, err := h.lifecycle.Submit(c.Request().Context(), chatID, c.Param("id"), req.Comment)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) AcceptTask(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}
	task, err := h.lifecycle.Accept(c.Request().Context(), chatID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) AcceptSubmission(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}
	assignment, err := h.lifecycle.AcceptSubmission(
		c.Request().Context(), chatID, c.Param("id"), c.Param("chat_id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, assignment)
}

func (h *Handler) RequestRevision(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}

	var req dto.RevisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.Check(&req); err != nil {
		return err
	}

	due, err := h.deadlines.Parse(req.Deadline, h.clk.Now())
	if err != nil {
		return toHTTPError(err)
	}

	task, err := h.lifecycle.RequestRevision(
		c.Request().Context(), chatID, c.Param("id"), due, req.Comment)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) DeleteTask(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}
	if err := h.tasks.DeleteTask(c.Request().Context(), chatID, c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ScheduleReminder(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}

	var req dto.ReminderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.Check(&req); err != nil {
		return err
	}

	at, err := h.deadlines.Parse(req.RemindAt, h.clk.Now())
	if err != nil {
		return toHTTPError(err)
	}

	reminder, err := h.tasks.ScheduleReminder(c.Request().Context(), chatID, c.Param("id"), at)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, reminder)
}

func (h *Handler) IdentifyUser(c echo.Context) error {
	var req dto.IdentifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.Check(&req); err != nil {
		return err
	}

	user, err := h.users.IdentifyUser(c.Request().Context(), services.IdentifyParams{
		ChatID:    req.ChatID,
		FirstName: req.FirstName,
		Username:  req.Username,
		IsAdmin:   req.IsAdmin,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) SetNotifications(c echo.Context) error {
	var req dto.NotificationsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := h.users.SetNotifications(c.Request().Context(), c.Param("chat_id"), req.Enabled); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) WeeklyReport(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}
	stats, err := h.reports.Weekly(c.Request().Context(), chatID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) SummaryReport(c echo.Context) error {
	chatID, err := callerChatID(c)
	if err != nil {
		return err
	}
	stats, err := h.reports.Overall(c.Request().Context(), chatID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func callerChatID(c echo.Context) (string, error) {
	chatID := c.Request().Header.Get(chatIDHeader)
	if chatID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, chatIDHeader+" header is required")
	}
	return chatID, nil
}

func toHTTPError(err error) error {
	if apperrors.IsUserFacing(err) {
		return echo.NewHTTPError(apperrors.StatusCode(err), err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
