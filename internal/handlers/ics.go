package handlers

import (
	"net/http"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/team-task-tracker/internal/models"
)

const icsProductID = "-//team-task-tracker//tasks//EN"

// BuildTaskCalendar renders tasks with a deadline as one-hour VEVENTs.
func BuildTaskCalendar(tasks []*models.Task, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName("Team tasks")

	for _, t := range tasks {
		ev, ok := models.EventFromTask(t)
		if !ok {
			continue
		}
		vevent := cal.AddEvent(t.ID + "@team-task-tracker")
		vevent.SetDtStampTime(stamp)
		vevent.SetCreatedTime(t.CreatedAt)
		vevent.SetModifiedAt(t.UpdatedAt)
		vevent.SetStartAt(ev.Start)
		vevent.SetEndAt(ev.End)
		vevent.SetSummary(ev.Title)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		vevent.SetProperty(ical.ComponentPropertyCategories, t.Status.Label())
	}
	return cal
}

// Feed serves the task deadlines as an iCalendar document. The status and
// assigneeUid query parameters filter like the list endpoint.
func (h *TaskHandler) Feed(c echo.Context) error {
	tasks, err := h.tasks.List(c.Request().Context(), filterFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	cal := BuildTaskCalendar(tasks, time.Now().UTC())
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tasks.ics"`)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(cal.Serialize()))
}
