// Package triggers holds the background reactions of the system: the
// user-creation gate, the task deadline trigger, the calendar webhook
// processor and the watch channel renewal job.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

// UserGate runs when an identity signs in for the first time. Allow-listed
// identities get a user record; anything else is refused with
// ErrNotAllowed and no record is written.
type UserGate struct {
	users   services.UserRepository
	allowed services.AllowedEmailRepository
	now     func() time.Time
}

func NewUserGate(users services.UserRepository, allowed services.AllowedEmailRepository) *UserGate {
	return &UserGate{users: users, allowed: allowed, now: time.Now}
}

func (g *UserGate) OnUserCreated(ctx context.Context, id usecases.Identity) error {
	if id.Email == "" {
		return models.ErrNotAllowed
	}
	ok, err := g.allowed.Exists(ctx, id.Email)
	if err != nil {
		return fmt.Errorf("failed to check allow-list: %w", err)
	}
	if !ok {
		slog.Info("rejected sign-in for unlisted email", "uid", id.UID)
		return models.ErrNotAllowed
	}

	if _, err := g.users.FindByID(ctx, id.UID); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("failed to load user: %w", err)
	}
	user := models.NewUser(id.UID, models.NormalizeEmail(id.Email), id.DisplayName, id.PhotoURL, g.now().UTC())
	if err := g.users.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
