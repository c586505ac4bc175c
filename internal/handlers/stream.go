package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/team-task-tracker/internal/services"
)

// streamKeepAlive is the interval of comment lines sent on idle streams.
const streamKeepAlive = 30 * time.Second

// streamSnapshots writes every value delivered by subscribe as a server-sent
// event named event until the client goes away. Only the latest value is
// kept when the client falls behind, so the store's notifier never blocks.
func streamSnapshots[T any](c echo.Context, event string, subscribe func(ctx context.Context, fn func(T)) services.Unsubscribe) error {
	ctx := c.Request().Context()

	snapshots := make(chan T, 1)
	unsubscribe := subscribe(ctx, func(v T) {
		select {
		case <-snapshots:
		default:
		}
		snapshots <- v
	})
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case v := <-snapshots:
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
