package http

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/genesis/internal/server/metrics"
	"github.com/gofiber/fiber/v2"
)

const requestIDKey = "requestid"

// accessLog records every request with its latency and final status.
func (s *HTTPServer) accessLog(c *fiber.Ctx) error {
	start := time.Now()

	err := c.Next()
	if err != nil {
		// let the error handler set the final status before it is recorded
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	elapsed := time.Since(start)

	route := c.Route().Path
	if status == fiber.StatusNotFound && route == "/" {
		route = "unmatched"
	}
	metrics.ObserveHTTPRequest(c.Method(), route, status, elapsed)

	s.logger.Debug(c.UserContext(), "request",
		"request_id", c.Locals(requestIDKey),
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"elapsed", elapsed.String(),
	)
	return nil
}

// errorHandler renders errors as a JSON body with the matching status.
func (s *HTTPServer) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error(c.UserContext(), "request failed", "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
