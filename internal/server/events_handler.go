package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"clipvault/internal/broadcast"
)

// events contains the server-sent events handler.
type events struct {
	broker    *broadcast.Broadcaster
	heartbeat time.Duration
}

///// Stream
////
//

// Stream serves the live event feed: a ready event, then every domain event
// published after the subscription, plus a periodic ping so intermediaries
// keep the connection open. The loop blocks only on the next event, the
// heartbeat timer or the client going away.
func (h *events) Stream(c echo.Context) error {
	response := c.Response()
	response.Header().Set(echo.HeaderContentType, "text/event-stream")
	response.Header().Set(echo.HeaderCacheControl, "no-cache")
	response.Header().Set(echo.HeaderConnection, "keep-alive")
	response.WriteHeader(http.StatusOK)

	sub, cancel := h.broker.Subscribe()
	defer cancel()

	if err := writeSSE(response, "ready", []byte("{}")); err != nil {
		return nil
	}
	response.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(event.Data)
			if err != nil {
				payload = []byte("{}")
			}
			if err := writeSSE(response, event.Name, payload); err != nil {
				return nil
			}
			response.Flush()
		case <-heartbeat.C:
			if err := writeSSE(response, "ping", []byte("{}")); err != nil {
				return nil
			}
			response.Flush()
		}
	}
}

func writeSSE(w io.Writer, name string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
