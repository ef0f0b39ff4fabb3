package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopan-drive/internal/events"
)

// EventsHandler streams a user's tree changes as server-sent events.
type EventsHandler struct {
	broadcaster *events.Broadcaster
}

func NewEventsHandler(b *events.Broadcaster) *EventsHandler {
	return &EventsHandler{broadcaster: b}
}

// Stream handles GET /api/events
func (h *EventsHandler) Stream(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Events are disabled"})
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.broadcaster.Subscribe(c.GetString("username"))
	defer h.broadcaster.Unsubscribe(ch)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
