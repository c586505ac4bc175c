package triggers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
)

// RenewWindow is how close to expiry a channel must be to get renewed.
const RenewWindow = 24 * time.Hour

type watchRegistrar interface {
	RegisterWatch(ctx context.Context, uid string) (*models.CalendarChannel, error)
}

// ChannelRenewer keeps calendar push channels alive. Channels whose user
// disconnected the calendar are dropped.
type ChannelRenewer struct {
	channels  services.ChannelRepository
	users     services.UserRepository
	registrar watchRegistrar
	now       func() time.Time
}

type RenewResult struct {
	Renewed int
	Dropped int
	Failed  int
}

func NewChannelRenewer(channels services.ChannelRepository, users services.UserRepository, registrar watchRegistrar) *ChannelRenewer {
	return &ChannelRenewer{channels: channels, users: users, registrar: registrar, now: time.Now}
}

func (r *ChannelRenewer) Run(ctx context.Context) (RenewResult, error) {
	var res RenewResult
	channels, err := r.channels.FindAll(ctx)
	if err != nil {
		return res, err
	}
	deadline := r.now().Add(RenewWindow)

	for _, ch := range channels {
		user, err := r.users.FindByID(ctx, ch.UID)
		if err != nil && !errors.Is(err, models.ErrUserNotFound) {
			slog.Error("failed to load channel owner", "uid", ch.UID, "error", err)
			res.Failed++
			continue
		}
		if user == nil || !user.HasRefreshToken() {
			if err := r.channels.Delete(ctx, ch.UID); err != nil {
				slog.Error("failed to drop calendar channel", "uid", ch.UID, "error", err)
				res.Failed++
				continue
			}
			res.Dropped++
			continue
		}
		if ch.ExpiresAt.After(deadline) {
			continue
		}
		if _, err := r.registrar.RegisterWatch(ctx, ch.UID); err != nil {
			slog.Error("failed to renew calendar channel", "uid", ch.UID, "error", err)
			res.Failed++
			continue
		}
		res.Renewed++
	}
	return res, nil
}

// Schedule registers Run on c with the given cron spec.
func (r *ChannelRenewer) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		res, err := r.Run(context.Background())
		if err != nil {
			slog.Error("calendar channel renewal failed", "error", err)
			return
		}
		slog.Info("calendar channels renewed", "renewed", res.Renewed, "dropped", res.Dropped, "failed", res.Failed)
	})
}
