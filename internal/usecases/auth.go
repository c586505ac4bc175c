package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
)

// Identity is what the identity provider reports after a successful
// sign-in.
type Identity struct {
	UID         string  `json:"uid"`
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

type AuthService struct {
	users   services.UserRepository
	allowed services.AllowedEmailRepository
	now     Clock
}

func NewAuthService(users services.UserRepository, allowed services.AllowedEmailRepository, now Clock) *AuthService {
	return &AuthService{users: users, allowed: allowed, now: orSystem(now)}
}

// Authenticate admits an allow-listed identity. When the email is not on
// the allow-list it removes any record left for the identity and returns
// ErrNotAllowed. Any other error means the check itself could not be made.
func (s *AuthService) Authenticate(ctx context.Context, id Identity) (*models.User, error) {
	ok, err := s.allowed.Exists(ctx, id.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check allow-list: %w", err)
	}
	if !ok {
		if err := s.users.Delete(ctx, id.UID); err != nil {
			slog.Error("failed to remove user no longer allowed", "uid", id.UID, "error", err)
		}
		return nil, models.ErrNotAllowed
	}

	now := s.now()
	existing, err := s.users.FindByID(ctx, id.UID)
	switch {
	case err == nil:
		if err := s.users.UpdateLastLogin(ctx, id.UID, now); err != nil {
			return nil, fmt.Errorf("failed to update last login: %w", err)
		}
		return existing.WithLastLogin(now), nil
	case errors.Is(err, models.ErrUserNotFound):
		user := models.NewUser(id.UID, models.NormalizeEmail(id.Email), id.DisplayName, id.PhotoURL, now)
		if err := s.users.Save(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return user, nil
	default:
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
}

// WatchUser calls fn with the user record now and after every change. fn
// receives nil while the record does not exist.
func (s *AuthService) WatchUser(ctx context.Context, uid string, fn func(*models.User)) services.Unsubscribe {
	return s.users.SubscribeByID(ctx, uid, fn)
}

// CurrentUser loads the signed-in user.
func (s *AuthService) CurrentUser(ctx context.Context, uid string) (*models.User, error) {
	return s.users.FindByID(ctx, uid)
}
