package usecases

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
)

// AdminService manages the allow-list and the user roster. Allow-list
// changes only affect future sign-ins.
type AdminService struct {
	users   services.UserRepository
	allowed services.AllowedEmailRepository
	now     Clock
}

func NewAdminService(users services.UserRepository, allowed services.AllowedEmailRepository, now Clock) *AdminService {
	return &AdminService{users: users, allowed: allowed, now: orSystem(now)}
}

func (s *AdminService) ListAllowedEmails(ctx context.Context) ([]*models.AllowedEmail, error) {
	return s.allowed.FindAll(ctx)
}

// WatchAllowedEmails calls fn with the allow-list now and after every change.
func (s *AdminService) WatchAllowedEmails(ctx context.Context, fn func([]*models.AllowedEmail)) services.Unsubscribe {
	return s.allowed.SubscribeAll(ctx, fn)
}

func (s *AdminService) AllowEmail(ctx context.Context, email, addedBy string) (*models.AllowedEmail, error) {
	normalized := models.NormalizeEmail(email)
	if _, err := mail.ParseAddress(normalized); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", models.ErrInvalidInput, email)
	}
	entry := models.NewAllowedEmail(normalized, addedBy, s.now())
	if err := s.allowed.Add(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to add allowed email: %w", err)
	}
	return entry, nil
}

func (s *AdminService) RemoveAllowedEmail(ctx context.Context, email string) error {
	if err := s.allowed.Remove(ctx, email); err != nil {
		return fmt.Errorf("failed to remove allowed email: %w", err)
	}
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.users.FindAll(ctx)
}

// SetAdmin grants or revokes the admin role. Only the operator CLI calls
// it.
func (s *AdminService) SetAdmin(ctx context.Context, uid string, isAdmin bool) error {
	return s.users.SetAdmin(ctx, uid, isAdmin)
}
