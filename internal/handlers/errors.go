package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/team-task-tracker/internal/models"
)

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// respondError maps domain errors to a status and a short message.
// Unknown errors are logged and reported as 500.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrTaskNotFound):
		return c.JSON(http.StatusNotFound, errorBody("Task not found"))
	case errors.Is(err, models.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, errorBody("User not found"))
	case errors.Is(err, models.ErrNotAllowed):
		return c.JSON(http.StatusForbidden, errorBody("Forbidden"))
	case errors.Is(err, models.ErrCalendarNotConnected):
		return c.JSON(http.StatusBadRequest, errorBody("Calendar not connected"))
	case errors.Is(err, models.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}
	slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, errorBody("Internal server error"))
}
