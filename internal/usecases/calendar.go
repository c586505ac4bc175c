package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/calendar"
	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
)

// ErrIncompleteTokens is returned by Connect when the provider did not hand
// out both an access token and a refresh token.
var ErrIncompleteTokens = errors.New("provider returned incomplete tokens")

// CalendarService is the user initiated side of calendar sync.
type CalendarService struct {
	tasks      services.TaskRepository
	users      services.UserRepository
	channels   services.ChannelRepository
	provider   calendar.Provider
	webhookURL string
	now        Clock
}

type CalendarServiceOptions struct {
	// WebhookURL is the public address of the webhook receiver. Watch
	// channels are only registered when it is set.
	WebhookURL string
	Now        Clock
}

func NewCalendarService(store services.Store, provider calendar.Provider, opts CalendarServiceOptions) *CalendarService {
	return &CalendarService{
		tasks:      store.Tasks(),
		users:      store.Users(),
		channels:   store.Channels(),
		provider:   provider,
		webhookURL: opts.WebhookURL,
		now:        orSystem(opts.Now),
	}
}

// AuthURL returns the consent screen URL with uid carried as state.
func (s *CalendarService) AuthURL(uid string) string {
	return s.provider.AuthCodeURL(uid)
}

// Connect exchanges an authorization code and stores the tokens on the
// user. A watch channel is registered afterwards when a webhook URL is
// configured; failing to register it does not fail the connection.
func (s *CalendarService) Connect(ctx context.Context, uid, code string) error {
	tokens, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return err
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return ErrIncompleteTokens
	}
	if err := s.users.UpdateCalendarTokens(ctx, uid, tokens); err != nil {
		return fmt.Errorf("failed to store calendar tokens: %w", err)
	}

	if s.webhookURL != "" {
		if _, err := s.registerWatch(ctx, uid, *tokens); err != nil {
			slog.Warn("failed to register calendar watch", "uid", uid, "error", err)
		}
	}
	return nil
}

// Disconnect clears the stored tokens and stops the user's watch channel.
func (s *CalendarService) Disconnect(ctx context.Context, uid string) error {
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return err
	}
	if user.CalendarTokens != nil {
		if err := s.stopWatch(ctx, uid, *user.CalendarTokens); err != nil {
			slog.Warn("failed to stop calendar watch", "uid", uid, "error", err)
		}
	}
	if err := s.users.UpdateCalendarTokens(ctx, uid, nil); err != nil {
		return fmt.Errorf("failed to clear calendar tokens: %w", err)
	}
	return nil
}

// tokensFor returns the stored tokens of uid, or ErrCalendarNotConnected
// when there is no access token.
func (s *CalendarService) tokensFor(ctx context.Context, uid string) (models.CalendarTokens, error) {
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return models.CalendarTokens{}, models.ErrCalendarNotConnected
		}
		return models.CalendarTokens{}, err
	}
	if !user.HasAccessToken() {
		return models.CalendarTokens{}, models.ErrCalendarNotConnected
	}
	return *user.CalendarTokens, nil
}

// SyncTask pushes the task to the calendar of uid, updating the linked
// event in place when there is one. It returns the event id, which is
// empty when the task has no deadline.
func (s *CalendarService) SyncTask(ctx context.Context, uid, taskID string) (string, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return "", err
	}
	tokens, err := s.tokensFor(ctx, uid)
	if err != nil {
		return "", err
	}

	eventID, err := s.provider.UpsertTaskEvent(ctx, tokens, task)
	if err != nil {
		slog.Error("failed to sync task to calendar", "task_id", taskID, "uid", uid, "error", err)
		return "", err
	}
	if eventID == "" {
		return "", nil
	}
	if err := s.tasks.SetCalendarEvent(ctx, taskID, eventID, s.now()); err != nil {
		return "", fmt.Errorf("failed to record calendar event: %w", err)
	}
	return eventID, nil
}

// RemoveTask deletes the task's linked event and clears the link. A task
// without a linked event is left as is.
func (s *CalendarService) RemoveTask(ctx context.Context, uid, taskID string) error {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	tokens, err := s.tokensFor(ctx, uid)
	if err != nil {
		return err
	}
	if task.CalendarEventID == nil {
		return nil
	}

	if err := s.provider.DeleteEvent(ctx, tokens, *task.CalendarEventID); err != nil {
		slog.Error("failed to remove task from calendar", "task_id", taskID, "uid", uid, "error", err)
		return err
	}
	if err := s.tasks.SetCalendarEvent(ctx, taskID, "", s.now()); err != nil {
		return fmt.Errorf("failed to clear calendar event: %w", err)
	}
	return nil
}

// ListEvents returns the events of uid's calendar between timeMin and
// timeMax.
func (s *CalendarService) ListEvents(ctx context.Context, uid string, timeMin, timeMax time.Time) ([]models.CalendarEvent, error) {
	tokens, err := s.tokensFor(ctx, uid)
	if err != nil {
		return nil, err
	}
	events, err := s.provider.ListEvents(ctx, tokens, timeMin, timeMax)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.CalendarEvent{}
	}
	return events, nil
}

// RegisterWatch (re)registers a push channel for uid using a fresh access
// token, replacing any previous channel.
func (s *CalendarService) RegisterWatch(ctx context.Context, uid string) (*models.CalendarChannel, error) {
	if s.webhookURL == "" {
		return nil, errors.New("calendar webhook URL is not configured")
	}
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !user.HasRefreshToken() {
		return nil, models.ErrCalendarNotConnected
	}
	tokens, err := s.provider.Refresh(ctx, user.CalendarTokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	return s.registerWatch(ctx, uid, *tokens)
}

func (s *CalendarService) registerWatch(ctx context.Context, uid string, tokens models.CalendarTokens) (*models.CalendarChannel, error) {
	if err := s.stopWatch(ctx, uid, tokens); err != nil {
		slog.Warn("failed to stop previous calendar watch", "uid", uid, "error", err)
	}
	ch, err := s.provider.Watch(ctx, tokens, calendar.NewChannelID(uid), s.webhookURL)
	if err != nil {
		return nil, err
	}
	ch.UID = uid
	if err := s.channels.Save(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to save calendar channel: %w", err)
	}
	return ch, nil
}

// StopWatch stops and forgets the push channel of uid, if any.
func (s *CalendarService) StopWatch(ctx context.Context, uid string) error {
	tokens, err := s.tokensFor(ctx, uid)
	if err != nil {
		return err
	}
	return s.stopWatch(ctx, uid, tokens)
}

func (s *CalendarService) stopWatch(ctx context.Context, uid string, tokens models.CalendarTokens) error {
	ch, err := s.channels.FindByUID(ctx, uid)
	if errors.Is(err, models.ErrChannelNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	stopErr := s.provider.StopChannel(ctx, tokens, *ch)
	if err := s.channels.Delete(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete calendar channel: %w", err)
	}
	return stopErr
}
