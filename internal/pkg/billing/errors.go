package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSecret is returned by the signature verifiers when no shared
	// secret is configured. Callers surface it as a server error.
	ErrMissingSecret = errors.New("signature secret is not configured")

	// ErrOrderInProgress means another reconciler holds a fresh claim on the
	// payment and no commerce order is visible yet.
	ErrOrderInProgress = errors.New("order creation for this payment is already in progress")
)

// ConfigurationError marks a missing or malformed deployment setting.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// ValidationError carries a client-caused problem with a human readable message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type PlanMismatchError struct {
	ExpectedPlanID     string
	SubscriptionPlanID string
}

func (e *PlanMismatchError) Error() string {
	return "Subscription plan mismatch. Please retry checkout."
}

type UnmappablePlanError struct {
	PlanID string
	// Selected is true when the plan id came from the client rather than the gateway.
	Selected bool
}

func (e *UnmappablePlanError) Error() string {
	if e.Selected {
		return "Invalid autopay plan selected."
	}
	return "Unable to map Razorpay subscription to configured autopay plan."
}

type AmountMismatchError struct {
	Amount         int64
	Currency       string
	ExpectedAmount int64
}

func (e *AmountMismatchError) Error() string {
	return "Payment amount or currency mismatch."
}

type IncompleteCustomerDetailsError struct {
	Missing []string
}

func (e *IncompleteCustomerDetailsError) Error() string {
	return "Missing customer details to create Shopify order."
}

type InvalidVariantError struct {
	Variant string
}

func (e *InvalidVariantError) Error() string {
	return "Invalid Shopify variant mapping for selected plan."
}

// UpstreamError is a non-2xx answer from the payment gateway or the
// commerce platform.
type UpstreamError struct {
	Service string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s request failed with status %d", e.Service, e.Status)
}

// IsClientError reports whether err was caused by the request rather than
// by configuration or an upstream service.
func IsClientError(err error) bool {
	var (
		validation *ValidationError
		mismatch   *PlanMismatchError
		unmappable *UnmappablePlanError
		amount     *AmountMismatchError
		incomplete *IncompleteCustomerDetailsError
	)
	return errors.As(err, &validation) ||
		errors.As(err, &mismatch) ||
		errors.As(err, &unmappable) ||
		errors.As(err, &amount) ||
		errors.As(err, &incomplete)
}

// IsConfigurationError reports whether err stems from deployment settings.
func IsConfigurationError(err error) bool {
	var (
		cfg     *ConfigurationError
		variant *InvalidVariantError
	)
	return errors.Is(err, ErrMissingSecret) || errors.As(err, &cfg) || errors.As(err, &variant)
}
