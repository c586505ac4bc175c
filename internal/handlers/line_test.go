package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/ytakahashi/team-task-tracker/internal/models"
	"github.com/ytakahashi/team-task-tracker/internal/services"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

type recordingReplier struct {
	reqs []*messaging_api.ReplyMessageRequest
}

func (r *recordingReplier) ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error) {
	r.reqs = append(r.reqs, req)
	return &messaging_api.ReplyMessageResponse{}, nil
}

func (r *recordingReplier) lastText(t *testing.T) string {
	t.Helper()
	if len(r.reqs) == 0 {
		t.Fatal("no reply sent")
	}
	msg, ok := r.reqs[len(r.reqs)-1].Messages[0].(*messaging_api.TextMessage)
	if !ok {
		t.Fatalf("unexpected message type %T", r.reqs[len(r.reqs)-1].Messages[0])
	}
	return msg.Text
}

const lineSecret = "line-secret"

func lineEvent(text string) string {
	return `{"destination":"Ubot","events":[{"type":"message","mode":"active","timestamp":1700000000000,` +
		`"source":{"type":"user","userId":"U1"},"webhookEventId":"01H","deliveryContext":{"isRedelivery":false},` +
		`"replyToken":"reply-1","message":{"type":"text","id":"1","quoteToken":"q","text":"` + text + `"}}]}`
}

func postLine(e *echo.Echo, body string, sign bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/line/webhook", strings.NewReader(body))
	if sign {
		mac := hmac.New(sha256.New, []byte(lineSecret))
		mac.Write([]byte(body))
		req.Header.Set("X-Line-Signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newLineFixture(t *testing.T) (*echo.Echo, *recordingReplier, *services.MemoryStore) {
	t.Helper()
	store := services.NewMemoryStore()
	replier := &recordingReplier{}
	h := &LineBotHandler{
		bot:    replier,
		secret: lineSecret,
		tasks:  usecases.NewTaskService(store.Tasks(), fixedClock),
		now:    fixedClock,
	}
	e := echo.New()
	e.POST("/line/webhook", h.HandleWebhook)
	return e, replier, store
}

func TestLineWebhookRejectsBadSignature(t *testing.T) {
	e, replier, _ := newLineFixture(t)
	if rec := postLine(e, lineEvent("一覧"), false); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if len(replier.reqs) != 0 {
		t.Error("no reply expected")
	}
}

func TestLineListsOpenAndOverdueTasks(t *testing.T) {
	e, replier, store := newLineFixture(t)
	ctx := context.Background()
	past := fixedNow.Add(-time.Hour)
	store.Tasks().Save(ctx, &models.Task{ID: "t1", Title: "Late report", Status: models.StatusInProgress, Deadline: &past, CreatedAt: fixedNow})
	store.Tasks().Save(ctx, &models.Task{ID: "t2", Title: "Shipped", Status: models.StatusDone, CreatedAt: fixedNow.Add(time.Minute)})

	if rec := postLine(e, lineEvent("一覧"), true); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	text := replier.lastText(t)
	if !strings.Contains(text, "Late report") || strings.Contains(text, "Shipped") {
		t.Errorf("unexpected open list %q", text)
	}
	if replier.reqs[0].ReplyToken != "reply-1" {
		t.Errorf("reply token = %q", replier.reqs[0].ReplyToken)
	}

	postLine(e, lineEvent("期限切れ"), true)
	if text := replier.lastText(t); !strings.Contains(text, "期限切れのタスク (1件)") {
		t.Errorf("unexpected overdue list %q", text)
	}
}

func TestLineIgnoresUnknownText(t *testing.T) {
	e, replier, _ := newLineFixture(t)
	if rec := postLine(e, lineEvent("こんにちは"), true); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(replier.reqs) != 0 {
		t.Errorf("unexpected replies %+v", replier.reqs)
	}
}

func TestLineBoardCounts(t *testing.T) {
	e, replier, store := newLineFixture(t)
	store.Tasks().Save(context.Background(), &models.Task{ID: "t1", Title: "a", Status: models.StatusBlocked, CreatedAt: fixedNow})
	postLine(e, lineEvent("ボード"), true)
	if text := replier.lastText(t); !strings.Contains(text, "Blocked: 1件") {
		t.Errorf("unexpected board %q", text)
	}
}
