package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

type recordingPusher struct {
	reqs []*messaging_api.PushMessageRequest
	err  error
}

func (p *recordingPusher) PushMessage(req *messaging_api.PushMessageRequest, _ string) (*messaging_api.PushMessageResponse, error) {
	p.reqs = append(p.reqs, req)
	return &messaging_api.PushMessageResponse{}, p.err
}

func TestLineNotifierPushesText(t *testing.T) {
	p := &recordingPusher{}
	n := &LineNotifier{bot: p, to: "C123"}

	if err := n.Notify(context.Background(), "deadline moved"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(p.reqs) != 1 || p.reqs[0].To != "C123" {
		t.Fatalf("unexpected requests %+v", p.reqs)
	}
	msg, ok := p.reqs[0].Messages[0].(*messaging_api.TextMessage)
	if !ok || msg.Text != "deadline moved" {
		t.Errorf("unexpected message %#v", p.reqs[0].Messages[0])
	}
}

func TestLineNotifierReturnsPushError(t *testing.T) {
	n := &LineNotifier{bot: &recordingPusher{err: errors.New("quota")}, to: "C123"}
	if err := n.Notify(context.Background(), "x"); err == nil {
		t.Fatal("expected an error")
	}
}
