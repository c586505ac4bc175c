// Package calendar talks to Google Calendar on behalf of a user, using the
// OAuth tokens the user granted.
package calendar

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ytakahashi/team-task-tracker/internal/models"
)

const (
	// TaskIDProperty is the private extended property holding the owning
	// task's id.
	TaskIDProperty = "taskId"

	primaryCalendar = "primary"
)

// Provider is the calendar backend used by the sync paths.
type Provider interface {
	// AuthCodeURL returns the consent screen URL; state is echoed back to
	// the callback unchanged.
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.CalendarTokens, error)
	// Refresh obtains a fresh access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*models.CalendarTokens, error)

	// UpsertTaskEvent updates the task's event in place when it has one and
	// inserts a new event otherwise. It returns the event id, or "" when
	// the task has no deadline.
	UpsertTaskEvent(ctx context.Context, tokens models.CalendarTokens, task *models.Task) (string, error)
	DeleteEvent(ctx context.Context, tokens models.CalendarTokens, eventID string) error
	ListEvents(ctx context.Context, tokens models.CalendarTokens, timeMin, timeMax time.Time) ([]models.CalendarEvent, error)
	// ListUpdatedEvents returns events modified at or after since.
	ListUpdatedEvents(ctx context.Context, tokens models.CalendarTokens, since time.Time) ([]models.CalendarEvent, error)

	Watch(ctx context.Context, tokens models.CalendarTokens, channelID, address string) (*models.CalendarChannel, error)
	StopChannel(ctx context.Context, tokens models.CalendarTokens, ch models.CalendarChannel) error
}

// NewChannelID returns a watch channel id for uid, "<uid>:<random>".
func NewChannelID(uid string) string {
	return uid + ":" + uuid.New().String()
}

// UIDFromChannelID extracts the uid embedded by NewChannelID.
func UIDFromChannelID(channelID string) string {
	uid, _, _ := strings.Cut(channelID, ":")
	return strings.TrimSpace(uid)
}
