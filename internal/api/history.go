package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/sentinel-go/internal/errors"
)

func (s *Server) handleHistory(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return httpError(c, errors.Newf("invalid limit %q", raw).
				Component("api").
				Category(errors.CategoryValidation).
				Build())
		}
		limit = parsed
	}

	alerts := s.history.Recent(limit)
	return c.JSON(http.StatusOK, map[string]any{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) handleHistoryLatest(c echo.Context) error {
	alert, ok := s.history.Latest()
	if !ok {
		return httpError(c, errors.Newf("no alerts recorded").
			Component("api").
			Category(errors.CategoryNotFound).
			Build())
	}
	return c.JSON(http.StatusOK, alert)
}

func (s *Server) handleClearHistory(c echo.Context) error {
	cleared := s.history.Len()
	s.history.Clear()
	s.hub.ResetStats()

	s.logger.Info("alert history cleared", "alerts", cleared)
	return c.JSON(http.StatusOK, map[string]int{"cleared": cleared})
}
