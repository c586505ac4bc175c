package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/team-task-tracker/internal/triggers"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

const calendarPage = "/calendar"

type CalendarHandler struct {
	calendar *usecases.CalendarService
	webhook  *triggers.WebhookProcessor
}

func NewCalendarHandler(calendar *usecases.CalendarService, webhook *triggers.WebhookProcessor) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, webhook: webhook}
}

// ownUID resolves the uid a calendar request acts for. Callers may only act
// for themselves.
func ownUID(c echo.Context, requested string) (string, bool) {
	uid := sessionClaims(c).UID
	return uid, requested == "" || requested == uid
}

// Connect redirects to the provider consent screen with the uid as state.
func (h *CalendarHandler) Connect(c echo.Context) error {
	uid, ok := ownUID(c, c.QueryParam("uid"))
	if !ok {
		return c.JSON(http.StatusForbidden, errorBody("Forbidden"))
	}
	return c.Redirect(http.StatusFound, h.calendar.AuthURL(uid))
}

func (h *CalendarHandler) Callback(c echo.Context) error {
	code := c.QueryParam("code")
	uid := c.QueryParam("state")
	if code == "" || uid == "" {
		return c.Redirect(http.StatusFound, calendarPage+"?error=missing_params")
	}
	if uid != sessionClaims(c).UID {
		slog.Warn("calendar callback state does not match session", "state", uid)
		return c.Redirect(http.StatusFound, calendarPage+"?error=callback_failed")
	}

	err := h.calendar.Connect(c.Request().Context(), uid, code)
	switch {
	case errors.Is(err, usecases.ErrIncompleteTokens):
		return c.Redirect(http.StatusFound, calendarPage+"?error=no_tokens")
	case err != nil:
		slog.Error("calendar OAuth callback failed", "uid", uid, "error", err)
		return c.Redirect(http.StatusFound, calendarPage+"?error=callback_failed")
	}
	return c.Redirect(http.StatusFound, calendarPage+"?connected=true")
}

func (h *CalendarHandler) Disconnect(c echo.Context) error {
	if err := h.calendar.Disconnect(c.Request().Context(), sessionClaims(c).UID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *CalendarHandler) Events(c echo.Context) error {
	requested := c.QueryParam("uid")
	rawMin, rawMax := c.QueryParam("timeMin"), c.QueryParam("timeMax")
	if requested == "" || rawMin == "" || rawMax == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing params"))
	}
	uid, ok := ownUID(c, requested)
	if !ok {
		return c.JSON(http.StatusForbidden, errorBody("Forbidden"))
	}
	timeMin, err1 := time.Parse(time.RFC3339, rawMin)
	timeMax, err2 := time.Parse(time.RFC3339, rawMax)
	if err1 != nil || err2 != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid time range"))
	}

	events, err := h.calendar.ListEvents(c.Request().Context(), uid, timeMin, timeMax)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}

type syncRequest struct {
	TaskID string `json:"taskId"`
	UID    string `json:"uid"`
	Action string `json:"action"`
}

type syncResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId,omitempty"`
}

func (h *CalendarHandler) Sync(c echo.Context) error {
	var req syncRequest
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.TaskID == "" || req.UID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing params"))
	}
	uid, ok := ownUID(c, req.UID)
	if !ok {
		return c.JSON(http.StatusForbidden, errorBody("Forbidden"))
	}

	ctx := c.Request().Context()
	switch req.Action {
	case "sync":
		eventID, err := h.calendar.SyncTask(ctx, uid, req.TaskID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, syncResponse{Success: true, EventID: eventID})
	case "remove":
		if err := h.calendar.RemoveTask(ctx, uid, req.TaskID); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, syncResponse{Success: true})
	default:
		return c.JSON(http.StatusBadRequest, errorBody("Unknown action"))
	}
}

// Webhook receives provider push notifications. It takes no session; the
// channel id identifies the user.
func (h *CalendarHandler) Webhook(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
	}
	channelID := c.Request().Header.Get("X-Goog-Channel-ID")
	state := c.Request().Header.Get("X-Goog-Resource-State")

	err := h.webhook.Process(c.Request().Context(), channelID, state)
	switch {
	case errors.Is(err, triggers.ErrInvalidChannel):
		return c.String(http.StatusBadRequest, "Invalid channel")
	case err != nil:
		slog.Error("calendar webhook failed", "channel_id", channelID, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}
	return c.String(http.StatusOK, "OK")
}
