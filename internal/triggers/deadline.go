package triggers

import (
	"context"
	"log/slog"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/calendar"
	"github.com/ytakahashi/team-task-tracker/internal/services"
)

// DeadlineTrigger pushes deadline changes to the assignee's calendar.
// Failures are logged and dropped.
type DeadlineTrigger struct {
	tasks    services.TaskRepository
	users    services.UserRepository
	provider calendar.Provider
	now      func() time.Time
}

func NewDeadlineTrigger(tasks services.TaskRepository, users services.UserRepository, provider calendar.Provider) *DeadlineTrigger {
	return &DeadlineTrigger{tasks: tasks, users: users, provider: provider, now: time.Now}
}

// Start subscribes the trigger to every task write until ctx is done or
// the returned function is called.
func (t *DeadlineTrigger) Start(ctx context.Context) services.Unsubscribe {
	return t.tasks.WatchChanges(ctx, func(change services.TaskChange) {
		t.HandleChange(ctx, change)
	})
}

func (t *DeadlineTrigger) HandleChange(ctx context.Context, change services.TaskChange) {
	after := change.After
	if after == nil {
		return
	}
	var before *time.Time
	if change.Before != nil {
		before = change.Before.Deadline
	}
	if sameDeadline(before, after.Deadline) || after.Deadline == nil || after.AssigneeUID == nil {
		return
	}

	user, err := t.users.FindByID(ctx, *after.AssigneeUID)
	if err != nil {
		slog.Warn("deadline trigger could not load assignee", "task_id", after.ID, "uid", *after.AssigneeUID, "error", err)
		return
	}
	if !user.HasRefreshToken() {
		return
	}

	tokens, err := t.provider.Refresh(ctx, user.CalendarTokens.RefreshToken)
	if err != nil {
		slog.Error("failed to refresh calendar token", "task_id", after.ID, "uid", user.UID, "error", err)
		return
	}
	eventID, err := t.provider.UpsertTaskEvent(ctx, *tokens, after)
	if err != nil {
		slog.Error("failed to sync deadline to calendar", "task_id", after.ID, "uid", user.UID, "error", err)
		return
	}
	if after.CalendarEventID != nil || eventID == "" {
		return
	}
	if err := t.tasks.SetCalendarEvent(ctx, after.ID, eventID, t.now().UTC()); err != nil {
		slog.Error("failed to record calendar event", "task_id", after.ID, "event_id", eventID, "error", err)
	}
}

func sameDeadline(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
