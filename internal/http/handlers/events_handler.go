// README: SSE stream; every published event is forwarded to every viewer.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"bistro/internal/modules/notify"
)

type EventsHandler struct {
	broker *notify.Broker
}

func NewEventsHandler(broker *notify.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

// Stream holds one long-lived subscription per viewer. The first frame is a
// synthetic "connected" acknowledgement; after that, events flow verbatim
// until the client disconnects or the server shuts down. Missed events are
// not replayed; reconnecting viewers re-fetch state via the tracking pull.
func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	events, cancel := h.broker.Subscribe(ctx)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writeFrame(c.Writer, notify.Event{Type: notify.EventConnected, At: time.Now().UTC()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			writeFrame(w, ev)
			return true
		}
	})
}

func writeFrame(w io.Writer, ev notify.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", body)
}
