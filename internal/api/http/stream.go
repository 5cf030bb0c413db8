package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// watcher is anything whose state can be streamed.
type watcher interface {
	Watch(ctx context.Context) <-chan any
}

// stream answers with a server-sent event stream: a "state" event for the
// current value and every later one, and a final "closed" event when the
// source ends. The stream also ends when the client goes away or
// StreamContext is cancelled.
func (h *handler) stream(c *fiber.Ctx, src watcher, logArgs ...any) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(h.StreamContext)
	updates := src.Watch(ctx)
	logger := h.Logger.With(logArgs...)
	keepAlive := h.KeepAlive

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		logger.Debug("event stream opened")

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		var id uint64
		fmt.Fprintf(w, "retry: 5000\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				logger.Debug("event stream cancelled")
				return

			case v, ok := <-updates:
				if !ok {
					fmt.Fprintf(w, "event: closed\ndata: {}\n\n")
					_ = w.Flush()
					logger.Debug("event stream source closed")
					return
				}
				data, err := json.Marshal(v)
				if err != nil {
					logger.Error("failed to marshal state event", "error", err)
					continue
				}
				id++
				fmt.Fprintf(w, "event: state\nid: %d\ndata: %s\n\n", id, data)
				if err := w.Flush(); err != nil {
					logger.Debug("client disconnected from event stream")
					return
				}

			case <-ticker.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				if err := w.Flush(); err != nil {
					logger.Debug("client disconnected from event stream")
					return
				}
			}
		}
	}))
}
