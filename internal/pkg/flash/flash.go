package flash

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
)

// Success queues a success message for the next page render.
func Success(c *fiber.Ctx, message string) *fiber.Ctx {
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": message})
}

// Error queues an error message for the next page render.
func Error(c *fiber.Ctx, message string) *fiber.Ctx {
	return flash.WithError(c, fiber.Map{"type": "error", "message": message})
}

// Message returns the pending message, if any, as (type, message).
func Message(c *fiber.Ctx) (string, string) {
	data := flash.Get(c)
	if data == nil {
		return "", ""
	}
	kind, _ := data["type"].(string)
	msg, _ := data["message"].(string)
	return kind, msg
}
