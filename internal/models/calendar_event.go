package models

import "time"

// EventDuration is the fixed length of an event created from a task deadline.
const EventDuration = time.Hour

// CalendarEvent is a projection of an event held by the calendar provider.
// TaskID is only present on events created from a task.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TaskID      string    `json:"taskId,omitempty"`
	Description string    `json:"description,omitempty"`
	AllDay      bool      `json:"allDay,omitempty"`
}

// EventFromTask returns the event a task with a deadline maps to. ok is
// false when the task has no deadline.
func EventFromTask(t *Task) (ev CalendarEvent, ok bool) {
	if t.Deadline == nil {
		return CalendarEvent{}, false
	}
	ev = CalendarEvent{
		Title:       t.Title,
		Start:       *t.Deadline,
		End:         t.Deadline.Add(EventDuration),
		TaskID:      t.ID,
		Description: t.Description,
	}
	if t.CalendarEventID != nil {
		ev.ID = *t.CalendarEventID
	}
	return ev, true
}

// CalendarChannel is a push notification channel registered with the
// calendar provider for one user. The channel id embeds the uid as
// "<uid>:<random>".
type CalendarChannel struct {
	UID        string    `json:"uid"`
	ChannelID  string    `json:"channelId"`
	ResourceID string    `json:"resourceId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
