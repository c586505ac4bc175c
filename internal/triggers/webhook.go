package triggers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/calendar"
	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/notify"
	"github.com/ytakahashi/team-task-tracker/internal/services"
)

// WebhookLookback is how far back the processor looks for modified events.
const WebhookLookback = 5 * time.Minute

// ResourceStateSync is the handshake notification sent when a channel is
// created.
const ResourceStateSync = "sync"

// ErrInvalidChannel is returned when the channel id carries no uid.
var ErrInvalidChannel = errors.New("invalid channel")

// WebhookProcessor pulls calendar changes back into task deadlines. Any
// event carrying a task id overwrites that task's deadline with its start;
// the last write wins.
type WebhookProcessor struct {
	tasks    services.TaskRepository
	users    services.UserRepository
	provider calendar.Provider
	notifier notify.Notifier
	now      func() time.Time
}

func NewWebhookProcessor(tasks services.TaskRepository, users services.UserRepository, provider calendar.Provider, notifier notify.Notifier) *WebhookProcessor {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &WebhookProcessor{tasks: tasks, users: users, provider: provider, notifier: notifier, now: time.Now}
}

// Process handles one notification. Handshakes and users without a
// refresh token are accepted without work.
func (p *WebhookProcessor) Process(ctx context.Context, channelID, resourceState string) error {
	if resourceState == ResourceStateSync {
		return nil
	}
	uid := calendar.UIDFromChannelID(channelID)
	if uid == "" {
		return ErrInvalidChannel
	}

	user, err := p.users.FindByID(ctx, uid)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !user.HasRefreshToken() {
		return nil
	}

	tokens, err := p.provider.Refresh(ctx, user.CalendarTokens.RefreshToken)
	if err != nil {
		return err
	}
	now := p.now().UTC()
	events, err := p.provider.ListUpdatedEvents(ctx, *tokens, now.Add(-WebhookLookback))
	if err != nil {
		return err
	}

	for _, ev := range events {
		if ev.TaskID == "" || ev.AllDay || ev.Start.IsZero() {
			continue
		}
		p.applyEvent(ctx, ev, now)
	}
	return nil
}

func (p *WebhookProcessor) applyEvent(ctx context.Context, ev models.CalendarEvent, now time.Time) {
	task, err := p.tasks.FindByID(ctx, ev.TaskID)
	if err != nil {
		slog.Warn("webhook event references unknown task", "task_id", ev.TaskID, "event_id", ev.ID, "error", err)
		return
	}
	if err := p.tasks.UpdateDeadline(ctx, ev.TaskID, ev.Start, now); err != nil {
		slog.Error("failed to apply calendar deadline", "task_id", ev.TaskID, "event_id", ev.ID, "error", err)
		return
	}
	if task.Deadline != nil && task.Deadline.Equal(ev.Start) {
		return
	}
	msg := fmt.Sprintf("「%s」の期限がカレンダーから変更されました: %s", task.Title, ev.Start.Format("2006/01/02 15:04"))
	if err := p.notifier.Notify(ctx, msg); err != nil {
		slog.Warn("failed to notify deadline change", "task_id", ev.TaskID, "error", err)
	}
}
