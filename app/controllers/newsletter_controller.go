package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/internal/pkg/newsletter"
)

type NewsletterService interface {
	Subscribe(ctx context.Context, in newsletter.SubscribeInput) error
	Dispatch(ctx context.Context, in newsletter.DispatchInput) (*newsletter.DispatchResult, error)
}

type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}

type NewsletterController struct {
	service NewsletterService
	captcha CaptchaVerifier
}

func NewNewsletterController(service NewsletterService, captcha CaptchaVerifier) *NewsletterController {
	return &NewsletterController{service: service, captcha: captcha}
}

type subscribeRequest struct {
	Email        string `json:"email" form:"email"`
	Name         string `json:"name" form:"name"`
	Source       string `json:"source" form:"source"`
	CaptchaToken string `json:"hcaptchaToken" form:"h-captcha-response"`
}

func (nc *NewsletterController) HandleSubscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	_ = c.BodyParser(&req)

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if nc.captcha != nil {
		if err := nc.captcha.Verify(ctx, req.CaptchaToken); err != nil {
			log.Warnf("[Newsletter] Captcha rejected for %s: %v", c.IP(), err)
			return jsonError(c, fiber.StatusBadRequest, "Captcha verification failed. Please try again.")
		}
	}

	err := nc.service.Subscribe(ctx, newsletter.SubscribeInput{
		Email:  req.Email,
		Name:   req.Name,
		Source: req.Source,
	})
	if errors.Is(err, newsletter.ErrInvalidEmail) {
		return jsonError(c, fiber.StatusBadRequest, "Please enter a valid email.")
	}
	if err != nil {
		log.Errorf("[Newsletter] Subscribe failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to subscribe. Please try again.")
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleDispatch sends one newsletter to the newest active subscribers. The
// route is guarded by middleware.RequireAdminOrCron.
func (nc *NewsletterController) HandleDispatch(c *fiber.Ctx) error {
	var req newsletter.DispatchInput
	_ = c.BodyParser(&req)

	ctx, cancel := requestContext(c, 5*reconcileTimeout)
	defer cancel()

	res, err := nc.service.Dispatch(ctx, req)
	if errors.Is(err, newsletter.ErrMissingContent) {
		return jsonError(c, fiber.StatusBadRequest, "subject and html are required.")
	}
	if err != nil {
		log.Errorf("[Newsletter] Dispatch failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to dispatch newsletter.")
	}
	return c.JSON(fiber.Map{
		"ok":        true,
		"total":     res.Total,
		"delivered": res.Delivered,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
	})
}
