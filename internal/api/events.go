package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

// handleStats reports the pipeline counters plus gate and dispatcher
// internals in one snapshot.
func (s *Server) handleStats(c echo.Context) error {
	out := map[string]any{
		"pipeline": s.hub.GetStats(),
		"cameras":  s.registry.Status(),
		"history":  map[string]int{"size": s.history.Len()},
	}
	if s.gate != nil {
		out["cooldown"] = s.gate.GetStats()
	}
	if s.dispatcher != nil {
		out["notifications"] = s.dispatcher.GetStats()
	}
	return c.JSON(http.StatusOK, out)
}

// handleEvents streams hub events over SSE until the client disconnects.
func (s *Server) handleEvents(c echo.Context) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	id, events := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	s.logger.Debug("sse client connected", "subscriber_id", id)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sse client disconnected", "subscriber_id", id)
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
