// Package handlers exposes the HTTP API of the task tracker.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Router holds every handler group served by the application.
type Router struct {
	Sessions *SessionManager
	Auth     *AuthHandler
	Tasks    *TaskHandler
	Calendar *CalendarHandler
	Admin    *AdminHandler
	// Line is optional; the bot endpoint is only served when it is set.
	Line *LineBotHandler
}

// NewEcho returns an echo instance with logging and panic recovery and all
// routes registered.
func (r *Router) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	r.Register(e)
	return e
}

func (r *Router) Register(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.GET("/auth/google", r.Auth.BeginAuth)
	e.GET("/auth/google/callback", r.Auth.Callback)
	e.POST("/auth/retry", r.Auth.Retry)
	e.POST("/auth/logout", r.Auth.Logout)

	e.Any("/api/calendar/webhook", r.Calendar.Webhook)
	if r.Line != nil {
		e.POST("/line/webhook", r.Line.HandleWebhook)
	}

	api := e.Group("/api", r.Sessions.RequireSession)
	api.GET("/me", r.Auth.Me)
	api.GET("/me/stream", r.Auth.MeStream)

	api.GET("/tasks", r.Tasks.List)
	api.POST("/tasks", r.Tasks.Create)
	api.GET("/tasks/board", r.Tasks.Board)
	api.GET("/tasks/stream", r.Tasks.Stream)
	api.GET("/tasks/calendar.ics", r.Tasks.Feed)
	api.GET("/tasks/:id", r.Tasks.Get)
	api.PATCH("/tasks/:id", r.Tasks.Update)
	api.DELETE("/tasks/:id", r.Tasks.Delete)

	api.GET("/auth/calendar", r.Calendar.Connect)
	api.GET("/auth/calendar/callback", r.Calendar.Callback)
	api.GET("/calendar/events", r.Calendar.Events)
	api.POST("/calendar/sync", r.Calendar.Sync)
	api.POST("/calendar/disconnect", r.Calendar.Disconnect)

	admin := api.Group("/admin", r.Admin.RequireAdmin)
	admin.GET("/allowed-emails", r.Admin.ListAllowedEmails)
	admin.GET("/allowed-emails/stream", r.Admin.StreamAllowedEmails)
	admin.POST("/allowed-emails", r.Admin.AddAllowedEmail)
	admin.DELETE("/allowed-emails/:email", r.Admin.RemoveAllowedEmail)
	admin.GET("/users", r.Admin.ListUsers)
}
