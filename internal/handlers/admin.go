package handlers

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

type AdminHandler struct {
	admin *usecases.AdminService
	auth  *usecases.AuthService
}

func NewAdminHandler(admin *usecases.AdminService, auth *usecases.AuthService) *AdminHandler {
	return &AdminHandler{admin: admin, auth: auth}
}

// RequireAdmin must run after RequireSession. The admin flag is read from
// the store on every request.
func (h *AdminHandler) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := h.auth.CurrentUser(c.Request().Context(), sessionClaims(c).UID)
		if err != nil {
			return respondError(c, err)
		}
		if !user.IsAdmin {
			return c.JSON(http.StatusForbidden, errorBody("Forbidden"))
		}
		return next(c)
	}
}

func (h *AdminHandler) ListAllowedEmails(c echo.Context) error {
	emails, err := h.admin.ListAllowedEmails(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"allowedEmails": emails})
}

// StreamAllowedEmails pushes the allow-list every time it changes.
func (h *AdminHandler) StreamAllowedEmails(c echo.Context) error {
	return streamSnapshots(c, "allowedEmails", h.admin.WatchAllowedEmails)
}

func (h *AdminHandler) AddAllowedEmail(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	entry, err := h.admin.AllowEmail(c.Request().Context(), req.Email, sessionClaims(c).UID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *AdminHandler) RemoveAllowedEmail(c echo.Context) error {
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid email"))
	}
	if err := h.admin.RemoveAllowedEmail(c.Request().Context(), email); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	users, err := h.admin.ListUsers(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"users": users})
}
