// Package api contains the HTTP handlers for the RFP answer pipeline.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/pkg/models"
)

const serviceName = "rfp-pilot"

// HandleHealth returns basic health status (always returns 200 OK).
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:    "ok",
		Service:   serviceName,
		Version:   s.Version,
		Timestamp: time.Now().UTC(),
	})
}

// ProblemDetailsHandler is an echo error handler that renders RFC 7807
// Problem Details responses instead of echo's default error body.
func ProblemDetailsHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		detail := err.Error()

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
			if msg, ok := httpErr.Message.(string); ok {
				detail = msg
			}
		}

		problem := models.ProblemDetails{
			Type:     "about:blank",
			Title:    http.StatusText(status),
			Status:   status,
			Detail:   detail,
			Instance: c.Request().URL.Path,
		}

		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		if writeErr := c.JSON(status, problem); writeErr != nil {
			logger.Error("failed to write error response", "error", writeErr)
		}
	}
}
