package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchcode/backend/pkg/logger"
)

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := logger.GenerateRequestID()
		c.Locals("requestID", requestID)

		err := c.Next()

		latency := time.Since(start)
		statusCode := c.Response().StatusCode()

		details := map[string]interface{}{
			"method":       c.Method(),
			"path":         c.Path(),
			"status_code":  statusCode,
			"latency_ms":   latency.Milliseconds(),
			"user_agent":   c.Get("User-Agent"),
			"ip":           c.IP(),
			"request_body": logger.GetRequestBodySummary(c),
			"request_id":   requestID,
		}

		userID := logger.GetUserIDFromContext(c)
		if userID != nil {
			if statusCode >= 400 {
				logger.ErrorWithUser(*userID, "http_request", err, details)
			} else {
				logger.InfoWithUser(*userID, "http_request", details)
			}
		} else {
			if statusCode >= 400 {
				logger.Error("http_request", err, details)
			} else {
				logger.Info("http_request", details)
			}
		}

		return err
	}
}

func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		statusCode := c.Response().StatusCode()
		userID := logger.GetUserIDFromContext(c)

		if statusCode == fiber.StatusUnauthorized {
			details := map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
				"ip":     c.IP(),
				"reason": "auth_rejected",
			}

			if userID != nil {
				logger.WarnWithUser(*userID, "auth_rejected", details)
			} else {
				logger.Warn("auth_rejected_unauthenticated", details)
			}
		}

		return err
	}
}
