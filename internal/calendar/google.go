package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// defaultTokenLifetime is assumed when the token endpoint omits an expiry.
const defaultTokenLifetime = time.Hour

// GoogleProvider is the Google Calendar implementation of Provider. It
// always operates on the user's primary calendar.
type GoogleProvider struct {
	config     *oauth2.Config
	calendarID string
}

var _ Provider = (*GoogleProvider)(nil)

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarScope},
		},
		calendarID: primaryCalendar,
	}
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	// AccessTypeOffline is required to receive a refresh token.
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*models.CalendarTokens, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
	}
	return tokensFromOAuth(tok, ""), nil
}

func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*models.CalendarTokens, error) {
	tok, err := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	return tokensFromOAuth(tok, refreshToken), nil
}

// service builds a Calendar client for tokens. An expired access token is
// refreshed in memory when a refresh token is present.
func (p *GoogleProvider) service(ctx context.Context, tokens models.CalendarTokens) (*gcal.Service, error) {
	src := p.config.TokenSource(ctx, &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Expiry:       tokens.ExpiresAt,
		TokenType:    "Bearer",
	})
	srv, err := gcal.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar client: %w", err)
	}
	return srv, nil
}

func (p *GoogleProvider) UpsertTaskEvent(ctx context.Context, tokens models.CalendarTokens, task *models.Task) (string, error) {
	body, ok := EventForTask(task)
	if !ok {
		return "", nil
	}
	srv, err := p.service(ctx, tokens)
	if err != nil {
		return "", err
	}

	var ev *gcal.Event
	if task.CalendarEventID != nil {
		ev, err = srv.Events.Update(p.calendarID, *task.CalendarEventID, body).Context(ctx).Do()
	} else {
		ev, err = srv.Events.Insert(p.calendarID, body).Context(ctx).Do()
	}
	if err != nil {
		return "", fmt.Errorf("failed to push task %s to calendar: %w", task.ID, err)
	}
	return ev.Id, nil
}

func (p *GoogleProvider) DeleteEvent(ctx context.Context, tokens models.CalendarTokens, eventID string) error {
	srv, err := p.service(ctx, tokens)
	if err != nil {
		return err
	}
	if err := srv.Events.Delete(p.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete calendar event %s: %w", eventID, err)
	}
	return nil
}

func (p *GoogleProvider) ListEvents(ctx context.Context, tokens models.CalendarTokens, timeMin, timeMax time.Time) ([]models.CalendarEvent, error) {
	srv, err := p.service(ctx, tokens)
	if err != nil {
		return nil, err
	}
	call := srv.Events.List(p.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	return collectEvents(ctx, call)
}

func (p *GoogleProvider) ListUpdatedEvents(ctx context.Context, tokens models.CalendarTokens, since time.Time) ([]models.CalendarEvent, error) {
	srv, err := p.service(ctx, tokens)
	if err != nil {
		return nil, err
	}
	call := srv.Events.List(p.calendarID).
		UpdatedMin(since.UTC().Format(time.RFC3339)).
		SingleEvents(true)
	return collectEvents(ctx, call)
}

func collectEvents(ctx context.Context, call *gcal.EventsListCall) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	err := call.Pages(ctx, func(page *gcal.Events) error {
		events = append(events, eventsFromItems(page.Items)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return events, nil
}

// eventsFromItems converts a page of API events, skipping the ones whose
// times cannot be parsed.
func eventsFromItems(items []*gcal.Event) []models.CalendarEvent {
	events := make([]models.CalendarEvent, 0, len(items))
	for _, item := range items {
		ev, err := EventFromAPI(item)
		if err != nil {
			slog.Warn("skipping calendar event", "event_id", item.Id, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

func (p *GoogleProvider) Watch(ctx context.Context, tokens models.CalendarTokens, channelID, address string) (*models.CalendarChannel, error) {
	srv, err := p.service(ctx, tokens)
	if err != nil {
		return nil, err
	}
	ch, err := srv.Events.Watch(p.calendarID, &gcal.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: address,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to watch calendar: %w", err)
	}
	return &models.CalendarChannel{
		UID:        UIDFromChannelID(channelID),
		ChannelID:  ch.Id,
		ResourceID: ch.ResourceId,
		ExpiresAt:  time.UnixMilli(ch.Expiration).UTC(),
	}, nil
}

func (p *GoogleProvider) StopChannel(ctx context.Context, tokens models.CalendarTokens, ch models.CalendarChannel) error {
	srv, err := p.service(ctx, tokens)
	if err != nil {
		return err
	}
	err = srv.Channels.Stop(&gcal.Channel{Id: ch.ChannelID, ResourceId: ch.ResourceID}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to stop channel %s: %w", ch.ChannelID, err)
	}
	return nil
}

// tokensFromOAuth keeps fallbackRefresh when the token endpoint did not
// rotate the refresh token.
func tokensFromOAuth(tok *oauth2.Token, fallbackRefresh string) *models.CalendarTokens {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(defaultTokenLifetime)
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}
	return &models.CalendarTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiry,
	}
}
