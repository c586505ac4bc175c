package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

// lineReplier is the part of the LINE messaging API the bot uses.
type lineReplier interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

// LineBotHandler answers read-only task queries sent to the team's LINE
// bot. It never writes tasks; LINE accounts are not mapped to users.
type LineBotHandler struct {
	bot    lineReplier
	secret string
	tasks  *usecases.TaskService
	now    func() time.Time
}

func NewLineBotHandler(channelToken, channelSecret string, tasks *usecases.TaskService) (*LineBotHandler, error) {
	bot, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE bot client: %w", err)
	}
	return &LineBotHandler{bot: bot, secret: channelSecret, tasks: tasks, now: time.Now}, nil
}

func (h *LineBotHandler) HandleWebhook(c echo.Context) error {
	cb, err := webhook.ParseRequest(h.secret, c.Request())
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			slog.Warn("invalid LINE signature")
			return c.NoContent(http.StatusBadRequest)
		}
		slog.Error("failed to parse LINE webhook", "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	ctx := c.Request().Context()
	for _, event := range cb.Events {
		switch e := event.(type) {
		case webhook.MessageEvent:
			if message, ok := e.Message.(webhook.TextMessageContent); ok {
				if err := h.handleText(ctx, e.ReplyToken, message.Text); err != nil {
					slog.Error("failed to handle LINE message", "error", err)
				}
			}
		case webhook.PostbackEvent:
			if err := h.handleText(ctx, e.ReplyToken, e.Postback.Data); err != nil {
				slog.Error("failed to handle LINE postback", "error", err)
			}
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *LineBotHandler) handleText(ctx context.Context, replyToken, text string) error {
	switch strings.TrimSpace(text) {
	case "一覧", "タスク一覧", "list:open":
		return h.replyOpenTasks(ctx, replyToken)
	case "期限切れ", "list:overdue":
		return h.replyOverdueTasks(ctx, replyToken)
	case "ボード", "board":
		return h.replyBoard(ctx, replyToken)
	case "ヘルプ", "help":
		return h.reply(replyToken, lineHelp, true)
	}
	// Unrecognized messages get no reply.
	return nil
}

func (h *LineBotHandler) replyOpenTasks(ctx context.Context, replyToken string) error {
	tasks, err := h.tasks.List(ctx, models.TaskFilter{})
	if err != nil {
		slog.Error("failed to list tasks for LINE", "error", err)
		return h.reply(replyToken, "タスク一覧の取得に失敗しました。", false)
	}
	var open []*models.Task
	for _, t := range tasks {
		if t.Status != models.StatusDone {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return h.reply(replyToken, "未完了のタスクはありません。", true)
	}
	return h.reply(replyToken, formatTaskList(fmt.Sprintf("📝 未完了のタスク (%d件)", len(open)), open), true)
}

func (h *LineBotHandler) replyOverdueTasks(ctx context.Context, replyToken string) error {
	tasks, err := h.tasks.List(ctx, models.TaskFilter{})
	if err != nil {
		slog.Error("failed to list tasks for LINE", "error", err)
		return h.reply(replyToken, "タスク一覧の取得に失敗しました。", false)
	}
	now := h.now()
	var overdue []*models.Task
	for _, t := range tasks {
		if models.IsTaskOverdue(t, now) {
			overdue = append(overdue, t)
		}
	}
	if len(overdue) == 0 {
		return h.reply(replyToken, "期限切れのタスクはありません。", true)
	}
	return h.reply(replyToken, formatTaskList(fmt.Sprintf("⚠️ 期限切れのタスク (%d件)", len(overdue)), overdue), true)
}

func (h *LineBotHandler) replyBoard(ctx context.Context, replyToken string) error {
	tasks, err := h.tasks.List(ctx, models.TaskFilter{})
	if err != nil {
		slog.Error("failed to list tasks for LINE", "error", err)
		return h.reply(replyToken, "ボードの取得に失敗しました。", false)
	}
	lines := []string{"📋 ボード"}
	for _, col := range usecases.BuildBoard(tasks, h.now()) {
		lines = append(lines, fmt.Sprintf("%s: %d件", col.Label, len(col.Tasks)))
	}
	return h.reply(replyToken, strings.Join(lines, "\n"), true)
}

func formatTaskList(header string, tasks []*models.Task) string {
	items := make([]string, 0, len(tasks))
	for i, t := range tasks {
		deadline := "期限なし"
		if t.Deadline != nil {
			deadline = t.Deadline.Format("2006-01-02 15:04")
		}
		assignee := "未割当"
		if t.AssigneeName != nil {
			assignee = *t.AssigneeName
		}
		items = append(items, fmt.Sprintf("%d. %s [%s] %s (%s)", i+1, t.Title, t.Status.Label(), assignee, deadline))
	}
	return header + "\n\n" + strings.Join(items, "\n")
}

func lineQuickReply() *messaging_api.QuickReply {
	item := func(label, data string) messaging_api.QuickReplyItem {
		return messaging_api.QuickReplyItem{
			Action: &messaging_api.PostbackAction{Label: label, Data: data, DisplayText: label},
		}
	}
	return &messaging_api.QuickReply{
		Items: []messaging_api.QuickReplyItem{
			item("一覧", "list:open"),
			item("期限切れ", "list:overdue"),
			item("ボード", "board"),
		},
	}
}

func (h *LineBotHandler) reply(replyToken, text string, withQuickReply bool) error {
	message := &messaging_api.TextMessage{Text: text}
	if withQuickReply {
		message.QuickReply = lineQuickReply()
	}
	_, err := h.bot.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []messaging_api.MessageInterface{message},
	})
	if err != nil {
		slog.Error("failed to send LINE reply", "error", err)
	}
	return err
}

const lineHelp = `📝 タスクボット 使い方

📋 未完了のタスク:
・一覧

⚠️ 期限切れのタスク:
・期限切れ

📊 ステータス別の件数:
・ボード

❓ ヘルプ表示:
・ヘルプ

💡 タスクの追加や編集はWebアプリから行ってください。`
