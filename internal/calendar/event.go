package calendar

import (
	"fmt"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/models"
	gcal "google.golang.org/api/calendar/v3"
)

const untitled = "(no title)"

// EventForTask converts a task into the request body pushed to the
// provider. ok is false when the task has no deadline.
func EventForTask(task *models.Task) (*gcal.Event, bool) {
	ev, ok := models.EventFromTask(task)
	if !ok {
		return nil, false
	}
	return &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339)},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: task.ID},
		},
	}, true
}

// EventFromAPI projects a provider event. All-day events carry a date
// instead of a date-time and are flagged AllDay.
func EventFromAPI(item *gcal.Event) (models.CalendarEvent, error) {
	ev := models.CalendarEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
	}
	if ev.Title == "" {
		ev.Title = untitled
	}
	if item.ExtendedProperties != nil && item.ExtendedProperties.Private != nil {
		ev.TaskID = item.ExtendedProperties.Private[TaskIDProperty]
	}

	var err error
	if ev.Start, ev.AllDay, err = parseEventTime(item.Start); err != nil {
		return ev, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	if ev.End, _, err = parseEventTime(item.End); err != nil {
		return ev, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	return ev, nil
}

func parseEventTime(dt *gcal.EventDateTime) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, nil
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, false, err
	}
	if dt.Date != "" {
		t, err := time.Parse(time.DateOnly, dt.Date)
		return t, true, err
	}
	return time.Time{}, false, nil
}
