// Package notify sends short team notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

// pusher is the part of the LINE messaging API the notifier uses.
type pusher interface {
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
}

// LineNotifier pushes text messages to a LINE user, group or room.
type LineNotifier struct {
	bot pusher
	to  string
}

func NewLineNotifier(channelToken, to string) (*LineNotifier, error) {
	bot, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE bot client: %w", err)
	}
	return &LineNotifier{bot: bot, to: to}, nil
}

func (n *LineNotifier) Notify(_ context.Context, message string) error {
	_, err := n.bot.PushMessage(&messaging_api.PushMessageRequest{
		To: n.to,
		Messages: []messaging_api.MessageInterface{
			&messaging_api.TextMessage{Text: message},
		},
	}, "")
	if err != nil {
		slog.Error("failed to push LINE message", "to", n.to, "error", err)
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}
