package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/errors"
)

type addCameraRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

func (s *Server) handleListCameras(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.Status())
}

func (s *Server) handleAddCamera(c echo.Context) error {
	var req addCameraRequest
	if err := c.Bind(&req); err != nil {
		return httpError(c, errors.Newf("invalid request body").
			Component("api").
			Category(errors.CategoryValidation).
			Build())
	}

	err := s.registry.AddCamera(conf.CameraConfig{
		ID:     req.ID,
		Name:   req.Name,
		Source: req.Source,
	})
	if err != nil {
		return httpError(c, err)
	}

	status, err := s.registry.CameraStatus(req.ID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, status)
}

func (s *Server) handleCameraStatus(c echo.Context) error {
	status, err := s.registry.CameraStatus(c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleRemoveCamera(c echo.Context) error {
	if err := s.registry.RemoveCamera(c.Param("id")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStartCamera(c echo.Context) error {
	id := c.Param("id")
	if err := s.registry.StartCamera(id); err != nil {
		return httpError(c, err)
	}
	status, err := s.registry.CameraStatus(id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleStopCamera(c echo.Context) error {
	id := c.Param("id")
	if err := s.registry.StopCamera(id); err != nil {
		return httpError(c, err)
	}
	status, err := s.registry.CameraStatus(id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleStartAll(c echo.Context) error {
	if err := s.registry.StartAll(); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, s.registry.Status())
}

func (s *Server) handleStopAll(c echo.Context) error {
	if err := s.registry.StopAll(); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, s.registry.Status())
}

func (s *Server) handleLatestFrame(c echo.Context) error {
	id := c.Param("id")
	data, captured, ok := s.hub.LatestFrame(id)
	if !ok {
		return httpError(c, errors.Newf("no frame available for camera %s", id).
			Component("api").
			Category(errors.CategoryNotFound).
			Build())
	}
	c.Response().Header().Set("X-Frame-Captured", captured.UTC().Format(http.TimeFormat))
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
