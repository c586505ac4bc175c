package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

type TaskHandler struct {
	tasks *usecases.TaskService
	repo  services.TaskRepository
}

func NewTaskHandler(tasks *usecases.TaskService, repo services.TaskRepository) *TaskHandler {
	return &TaskHandler{tasks: tasks, repo: repo}
}

func decodeJSON(c echo.Context, v any) error {
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", models.ErrInvalidInput, err)
	}
	return nil
}

func filterFromQuery(c echo.Context) models.TaskFilter {
	return models.TaskFilter{
		Status:      models.Status(c.QueryParam("status")),
		AssigneeUID: c.QueryParam("assigneeUid"),
	}
}

func (h *TaskHandler) List(c echo.Context) error {
	tasks, err := h.tasks.List(c.Request().Context(), filterFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *TaskHandler) Create(c echo.Context) error {
	var input models.CreateTaskInput
	if err := decodeJSON(c, &input); err != nil {
		return respondError(c, err)
	}
	task, err := h.tasks.Create(c.Request().Context(), input, sessionClaims(c).UID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) Get(c echo.Context) error {
	task, err := h.tasks.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Update(c echo.Context) error {
	var patch models.TaskPatch
	if err := decodeJSON(c, &patch); err != nil {
		return respondError(c, err)
	}
	task, err := h.tasks.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Delete(c echo.Context) error {
	if err := h.tasks.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TaskHandler) Board(c echo.Context) error {
	columns, err := h.tasks.Board(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"columns": columns})
}

// Stream sends the filtered task list as a server-sent event every time it
// changes.
func (h *TaskHandler) Stream(c echo.Context) error {
	filter := filterFromQuery(c)
	if filter.Status != "" && !filter.Status.Valid() {
		return c.JSON(http.StatusBadRequest, errorBody("unknown status"))
	}
	return streamSnapshots(c, "tasks", func(ctx context.Context, fn func([]*models.Task)) services.Unsubscribe {
		return h.repo.SubscribeAll(ctx, filter, fn)
	})
}
