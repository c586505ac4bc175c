package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ytakahashi/team-task-tracker/internal/calendar"
	"github.com/ytakahashi/team-task-tracker/internal/config"
	"github.com/ytakahashi/team-task-tracker/internal/handlers"
	"github.com/ytakahashi/team-task-tracker/internal/notify"
	"github.com/ytakahashi/team-task-tracker/internal/triggers"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cfg.OpenStore()
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	provider := calendar.NewGoogleProvider(cfg.CalendarClientID, cfg.CalendarClientSecret, cfg.CalendarRedirectURI)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotificationsEnabled() {
		line, err := notify.NewLineNotifier(cfg.LineChannelToken, cfg.LineNotifyTo)
		if err != nil {
			slog.Error("failed to create LINE notifier", "error", err)
			os.Exit(1)
		}
		notifier = line
	}

	authService := usecases.NewAuthService(store.Users(), store.AllowedEmails(), nil)
	calendarService := usecases.NewCalendarService(store, provider, usecases.CalendarServiceOptions{
		WebhookURL: cfg.CalendarWebhookURL,
	})
	sessions := handlers.NewSessionManager(cfg.JWTSecret, cfg.SessionTTL, cfg.SessionSecure)
	signIn := handlers.NewGoogleSignIn(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, cfg.JWTSecret, cfg.SessionSecure)

	router := &handlers.Router{
		Sessions: sessions,
		Auth:     handlers.NewAuthHandler(sessions, signIn, triggers.NewUserGate(store.Users(), store.AllowedEmails()), authService),
		Tasks:    handlers.NewTaskHandler(usecases.NewTaskService(store.Tasks(), nil), store.Tasks()),
		Calendar: handlers.NewCalendarHandler(
			calendarService,
			triggers.NewWebhookProcessor(store.Tasks(), store.Users(), provider, notifier),
		),
		Admin: handlers.NewAdminHandler(usecases.NewAdminService(store.Users(), store.AllowedEmails(), nil), authService),
	}

	if cfg.LineBotEnabled() {
		bot, err := handlers.NewLineBotHandler(cfg.LineChannelToken, cfg.LineChannelSecret, usecases.NewTaskService(store.Tasks(), nil))
		if err != nil {
			slog.Error("failed to create LINE bot", "error", err)
			os.Exit(1)
		}
		router.Line = bot
	}

	if cfg.TriggersEnabled {
		unsubscribe := triggers.NewDeadlineTrigger(store.Tasks(), store.Users(), provider).Start(ctx)
		defer unsubscribe()
		slog.Info("deadline trigger started")
	}

	if cfg.CalendarWebhookURL != "" {
		c := cron.New()
		renewer := triggers.NewChannelRenewer(store.Channels(), store.Users(), calendarService)
		if _, err := renewer.Schedule(c, cfg.CalendarRenewSchedule); err != nil {
			slog.Error("failed to schedule channel renewal", "error", err)
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
	}

	e := router.NewEcho()
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
}
