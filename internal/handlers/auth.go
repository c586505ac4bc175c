package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

type userGate interface {
	OnUserCreated(ctx context.Context, id usecases.Identity) error
}

type AuthHandler struct {
	sessions *SessionManager
	idp      IdentityProvider
	gate     userGate
	auth     *usecases.AuthService
}

func NewAuthHandler(sessions *SessionManager, idp IdentityProvider, gate userGate, auth *usecases.AuthService) *AuthHandler {
	return &AuthHandler{sessions: sessions, idp: idp, gate: gate, auth: auth}
}

func (h *AuthHandler) BeginAuth(c echo.Context) error {
	h.idp.Begin(c.Response(), c.Request())
	return nil
}

func (h *AuthHandler) Callback(c echo.Context) error {
	id, err := h.idp.Complete(c.Response(), c.Request())
	if err != nil {
		slog.Warn("sign-in failed", "error", err)
		return c.JSON(http.StatusUnauthorized, errorBody("Sign-in failed"))
	}
	return h.admit(c, id)
}

// Retry reruns the allow-list check for a session whose first check
// could not be completed.
func (h *AuthHandler) Retry(c echo.Context) error {
	claims, err := h.sessions.Parse(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorBody("Unauthorized"))
	}
	return h.admit(c, claims.Identity())
}

func (h *AuthHandler) Logout(c echo.Context) error {
	h.sessions.Clear(c)
	if err := h.idp.Logout(c.Response(), c.Request()); err != nil {
		slog.Warn("failed to end sign-in session", "error", err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.auth.CurrentUser(c.Request().Context(), sessionClaims(c).UID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// MeStream pushes the signed-in user's record every time it changes. A
// deleted record is sent as null.
func (h *AuthHandler) MeStream(c echo.Context) error {
	uid := sessionClaims(c).UID
	return streamSnapshots(c, "user", func(ctx context.Context, fn func(*models.User)) services.Unsubscribe {
		return h.auth.WatchUser(ctx, uid, fn)
	})
}

// admit runs the creation gate for first-time identities and then the
// authenticate use case. A denial tears the session down; a failed check
// keeps an unauthorized session so the user can retry.
func (h *AuthHandler) admit(c echo.Context, id usecases.Identity) error {
	ctx := c.Request().Context()

	_, err := h.auth.CurrentUser(ctx, id.UID)
	if errors.Is(err, models.ErrUserNotFound) {
		err = h.gate.OnUserCreated(ctx, id)
	}
	if err == nil {
		_, err = h.auth.Authenticate(ctx, id)
	}

	switch {
	case err == nil:
		if err := h.sessions.Issue(c, id, true); err != nil {
			return respondError(c, err)
		}
		return c.Redirect(http.StatusSeeOther, "/dashboard")
	case errors.Is(err, models.ErrNotAllowed):
		h.sessions.Clear(c)
		if err := h.idp.Logout(c.Response(), c.Request()); err != nil {
			slog.Warn("failed to end sign-in session", "error", err)
		}
		return c.Redirect(http.StatusSeeOther, "/unauthorized")
	default:
		slog.Error("failed to verify access", "uid", id.UID, "error", err)
		if err := h.sessions.Issue(c, id, false); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Could not verify access. Please try again.",
			"retry": "/auth/retry",
		})
	}
}
