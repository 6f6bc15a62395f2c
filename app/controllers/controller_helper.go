package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wandernook/wandernook/internal/pkg/billing"
)

const (
	// reconcileTimeout bounds the gateway and commerce calls made for one request.
	reconcileTimeout = 30 * time.Second
	defaultTimeout   = 15 * time.Second
)

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// requestContext derives a bounded context from the request's user context.
func requestContext(c *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), timeout)
}

// billingStatus maps a reconciliation error to its response status.
func billingStatus(err error) int {
	switch {
	case billing.IsClientError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, billing.ErrOrderInProgress):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// copyBody detaches the request body from fasthttp's reusable buffer.
func copyBody(c *fiber.Ctx) []byte {
	return append([]byte(nil), c.Body()...)
}
