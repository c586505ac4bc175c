package services

import (
	"context"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/models"
)

// Unsubscribe stops a subscription. It is safe to call more than once; once
// it returns no further callbacks are delivered. It must not be called
// synchronously from inside the subscription's own callback.
type Unsubscribe func()

// TaskChange describes one write to a task. Before is nil for a newly created
// task and After is nil for a deleted one.
type TaskChange struct {
	Before *models.Task
	After  *models.Task
}

type TaskRepository interface {
	// FindAll returns the tasks matching filter, newest first.
	FindAll(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	FindByID(ctx context.Context, id string) (*models.Task, error)
	// Save writes the full entity, replacing whatever is stored.
	Save(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
	UpdateDeadline(ctx context.Context, id string, deadline, at time.Time) error
	// SetCalendarEvent records eventID on the task, or clears the calendar
	// fields when eventID is empty.
	SetCalendarEvent(ctx context.Context, id, eventID string, at time.Time) error
	SubscribeAll(ctx context.Context, filter models.TaskFilter, fn func([]*models.Task)) Unsubscribe
	WatchChanges(ctx context.Context, fn func(TaskChange)) Unsubscribe
	GenerateID() string
}

type UserRepository interface {
	FindByID(ctx context.Context, uid string) (*models.User, error)
	FindAll(ctx context.Context) ([]*models.User, error)
	Save(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, uid string, at time.Time) error
	// UpdateCalendarTokens stores tokens and sets calendarConnected to
	// tokens != nil.
	UpdateCalendarTokens(ctx context.Context, uid string, tokens *models.CalendarTokens) error
	SetAdmin(ctx context.Context, uid string, isAdmin bool) error
	// Delete removes the user record. Deleting a missing user is not an error.
	Delete(ctx context.Context, uid string) error
	SubscribeByID(ctx context.Context, uid string, fn func(*models.User)) Unsubscribe
}

type AllowedEmailRepository interface {
	FindAll(ctx context.Context) ([]*models.AllowedEmail, error)
	Exists(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, allowed *models.AllowedEmail) error
	Remove(ctx context.Context, email string) error
	SubscribeAll(ctx context.Context, fn func([]*models.AllowedEmail)) Unsubscribe
}

type ChannelRepository interface {
	FindByUID(ctx context.Context, uid string) (*models.CalendarChannel, error)
	FindAll(ctx context.Context) ([]*models.CalendarChannel, error)
	Save(ctx context.Context, ch *models.CalendarChannel) error
	Delete(ctx context.Context, uid string) error
}

// Store bundles the repositories of one backend.
type Store interface {
	Tasks() TaskRepository
	Users() UserRepository
	AllowedEmails() AllowedEmailRepository
	Channels() ChannelRepository
	Close() error
}
