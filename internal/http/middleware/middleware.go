// Package middleware holds the fiber middleware shared by all routes and
// the per-route authentication and rate limiting handlers.
package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"nbconvert/internal/infra/logging"
)

// Health endpoints served by Register.
const (
	LivenessPath  = "/ops/health"
	ReadinessPath = "/ops/ready"
)

// Register attaches the global middleware: CORS, request IDs, health
// probes and request logging. ready backs the readiness probe; nil means
// always ready.
func Register(app *fiber.App, ready func() bool) {
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  LivenessPath,
		ReadinessEndpoint: ReadinessPath,
		ReadinessProbe: func(*fiber.Ctx) bool {
			return ready == nil || ready()
		},
	}))

	app.Use(RequestLogger())
}

// RequestLogger logs every request with its request id.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	}
}

func tooManyRequests(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusTooManyRequests, "Too many requests")
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    status,
			"message": msg,
		},
	})
}
