package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/metrics"
	"github.com/wandernook/wandernook/internal/pkg/shopify"
)

const (
	SupportedCurrency = "INR"
	PaymentCaptured   = "captured"

	defaultOrderNote = "Order created after verified Razorpay autopay payment."

	// A pending claim older than this is assumed abandoned by a crashed reconciler.
	claimTTL = 2 * time.Minute
)

// OrderPlatform is the commerce side of reconciliation.
type OrderPlatform interface {
	Configured() bool
	FindOrderByTag(ctx context.Context, tag string) (*shopify.OrderRef, error)
	CreateOrder(ctx context.Context, in shopify.OrderInput) (*shopify.OrderRef, error)
}

// Service reconciles gateway payments with commerce orders.
type Service struct {
	repo    Repository
	plans   *PlanRegistry
	gateway Gateway
	orders  OrderPlatform
	now     func() time.Time
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, plans *PlanRegistry, gateway Gateway, orders OrderPlatform) *Service {
	return &Service{
		repo:    repo,
		plans:   plans,
		gateway: gateway,
		orders:  orders,
		now:     time.Now,
	}
}

// NewServiceFromDB wires the GORM repository and the live API clients.
func NewServiceFromDB(db *gorm.DB, cfg *config.Config) *Service {
	return NewService(
		NewRepository(db),
		NewPlanRegistry(cfg.Plans),
		NewRazorpayClient(cfg.Razorpay),
		shopify.NewClient(cfg.Shopify),
	)
}

func (s *Service) Plans() *PlanRegistry { return s.plans }

func (s *Service) Gateway() Gateway { return s.gateway }

// CreateAutopaySubscription validates the checkout form and opens a gateway
// subscription for the plan.
func (s *Service) CreateAutopaySubscription(ctx context.Context, planID string, customer CustomerDetails) (*CheckoutResult, error) {
	plan, err := s.plans.Resolve(SanitizeText(planID, 40))
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, &ValidationError{Message: "Invalid plan selected for autopay checkout"}
	}

	c := customer.Sanitized()
	if err := c.ValidateCheckout(); err != nil {
		return nil, err
	}

	notes := Notes{
		"checkout_source":       shopify.AutopayCheckoutSource,
		"recurring_plan_id":     plan.ID,
		"recurring_cycle":       string(plan.Cycle),
		"recurring_amount_inr":  strconv.FormatInt(plan.AmountInr, 10),
		"recurring_total_count": strconv.Itoa(plan.TotalCount),
		"shopify_variant_id":    plan.ShopifyVariantID,
		"customer_name":         c.Name,
		"customer_email":        c.Email,
		"customer_phone":        c.Phone,
		"customer_city":         c.City,
		"customer_state":        c.State,
		"customer_pincode":      c.Pincode,
		"customer_country":      c.Country,
		"customer_address_1":    c.AddressLine1,
	}
	if c.AddressLine2 != "" {
		notes["customer_address_2"] = c.AddressLine2
	}

	sub, err := s.gateway.CreateSubscription(ctx, CreateSubscriptionRequest{
		PlanID:         plan.RazorpayPlanID,
		TotalCount:     plan.TotalCount,
		Quantity:       1,
		CustomerNotify: 1,
		Notes:          notes,
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		KeyID:          s.gateway.KeyID(),
		SubscriptionID: sub.ID,
		Plan: CheckoutPlanRef{
			ID:         plan.ID,
			Label:      plan.DisplayName,
			AmountInr:  plan.AmountInr,
			Cycle:      plan.Cycle,
			TotalCount: plan.TotalCount,
		},
	}, nil
}

// FetchSubscriptionAndPayment reads both gateway objects concurrently.
func (s *Service) FetchSubscriptionAndPayment(ctx context.Context, subscriptionID, paymentID string) (*Subscription, *Payment, error) {
	var (
		sub *Subscription
		pay *Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sub, err = s.gateway.FetchSubscription(gctx, subscriptionID)
		return err
	})
	g.Go(func() error {
		var err error
		pay, err = s.gateway.FetchPayment(gctx, paymentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sub, pay, nil
}

// EnsureAutopayOrder makes sure exactly one commerce order exists for a
// captured payment.
func (s *Service) EnsureAutopayOrder(ctx context.Context, in EnsureOrderInput) (res *OrderResult, err error) {
	defer func() {
		outcome := "error"
		if err == nil && res != nil {
			outcome = string(res.Status)
		}
		metrics.OrdersReconciled.WithLabelValues(outcome).Inc()
	}()

	if !s.orders.Configured() {
		return nil, &ConfigurationError{Message: "Shopify admin configuration is missing."}
	}

	paymentID := SanitizeText(in.PaymentID, 80)
	subscriptionID := SanitizeText(in.SubscriptionID, 80)
	if paymentID == "" || subscriptionID == "" {
		return nil, &ValidationError{Message: "Missing Razorpay payment verification details."}
	}

	sub, pay, err := s.FetchSubscriptionAndPayment(ctx, subscriptionID, paymentID)
	if err != nil {
		return nil, err
	}

	plan, err := s.resolveSubscriptionPlan(sub.PlanID, SanitizeText(in.ExpectedPlanID, 40))
	if err != nil {
		return nil, err
	}

	if pay.Status != PaymentCaptured {
		return &OrderResult{Status: OrderPaymentNotCaptured, PaymentStatus: pay.Status, Plan: plan}, nil
	}

	if pay.Amount != plan.AmountPaise || pay.Currency != SupportedCurrency {
		return nil, &AmountMismatchError{Amount: pay.Amount, Currency: pay.Currency, ExpectedAmount: plan.AmountPaise}
	}

	variantID, ok := ParseShopifyVariantID(plan.ShopifyVariantID)
	if !ok {
		return nil, &InvalidVariantError{Variant: plan.ShopifyVariantID}
	}

	customer := MergeCustomerDetails(in.Customer, sub, pay)
	if missing := customer.MissingFields(); len(missing) > 0 {
		return nil, &IncompleteCustomerDetailsError{Missing: missing}
	}

	result := func(status OrderStatus, order *shopify.OrderRef) *OrderResult {
		return &OrderResult{Status: status, Order: order, Plan: plan, Customer: customer}
	}
	paymentTag := "rzp-pay-" + paymentID

	existing, err := s.repo.FindAutopayOrder(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load autopay order: %w", err)
	}
	if existing != nil && existing.Status == models.AutopayOrderStatusCreated {
		return result(OrderAlreadyExists, orderRefFromMapping(existing)), nil
	}

	claimed, err := s.claimPayment(ctx, existing, paymentID, subscriptionID, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("claim autopay order: %w", err)
	}
	if !claimed {
		current, err := s.repo.FindAutopayOrder(ctx, paymentID)
		if err != nil {
			return nil, fmt.Errorf("load autopay order: %w", err)
		}
		if current != nil && current.Status == models.AutopayOrderStatusCreated {
			return result(OrderAlreadyExists, orderRefFromMapping(current)), nil
		}
		if found, _ := s.orders.FindOrderByTag(ctx, paymentTag); found != nil {
			return result(OrderAlreadyExists, found), nil
		}
		return nil, ErrOrderInProgress
	}

	// Orders created before the mapping table existed are only findable by tag.
	if found, _ := s.orders.FindOrderByTag(ctx, paymentTag); found != nil {
		if err := s.repo.CompleteAutopayOrder(ctx, paymentID, found.ID, found.Name); err != nil {
			log.Warnf("[Autopay] recording existing order %s for %s failed: %v", found.Name, paymentID, err)
		}
		return result(OrderAlreadyExists, found), nil
	}

	note := strings.TrimSpace(in.OrderNote)
	if note == "" {
		note = defaultOrderNote
	}
	order, err := s.orders.CreateOrder(ctx, buildOrderInput(plan, variantID, customer, sub, paymentID, subscriptionID, note))
	if err != nil {
		if relErr := s.repo.ReleaseAutopayOrder(ctx, paymentID); relErr != nil {
			log.Errorf("[Autopay] releasing claim for %s failed: %v", paymentID, relErr)
		}
		return nil, err
	}
	if err := s.repo.CompleteAutopayOrder(ctx, paymentID, order.ID, order.Name); err != nil {
		// The order exists; the next reconciler finds it by tag.
		log.Errorf("[Autopay] recording order %s for %s failed: %v", order.Name, paymentID, err)
	}
	log.Infof("[Autopay] created order %s for payment %s (%s)", order.Name, paymentID, plan.ID)
	return result(OrderCreated, order), nil
}

func (s *Service) claimPayment(ctx context.Context, existing *models.AutopayOrder, paymentID, subscriptionID, planID string) (bool, error) {
	now := s.now()
	if existing == nil {
		return s.repo.ClaimAutopayOrder(ctx, &models.AutopayOrder{
			RazorpayPaymentID:      paymentID,
			RazorpaySubscriptionID: subscriptionID,
			PlanID:                 planID,
			Status:                 models.AutopayOrderStatusPending,
			ClaimedAt:              now,
		})
	}
	return s.repo.TakeOverStaleClaim(ctx, paymentID, now.Add(-claimTTL), now)
}

func (s *Service) resolveSubscriptionPlan(subscriptionPlanID, expectedPlanID string) (*PlanConfig, error) {
	if expectedPlanID != "" {
		plan, err := s.plans.Resolve(expectedPlanID)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, &UnmappablePlanError{PlanID: expectedPlanID, Selected: true}
		}
		if plan.RazorpayPlanID != subscriptionPlanID {
			return nil, &PlanMismatchError{ExpectedPlanID: plan.RazorpayPlanID, SubscriptionPlanID: subscriptionPlanID}
		}
		return plan, nil
	}
	plan := s.plans.ResolveByRazorpayPlanID(subscriptionPlanID)
	if plan == nil {
		return nil, &UnmappablePlanError{PlanID: subscriptionPlanID}
	}
	return plan, nil
}

func buildOrderInput(plan *PlanConfig, variantID int64, c CustomerDetails, sub *Subscription, paymentID, subscriptionID, note string) shopify.OrderInput {
	amount := decimal.New(plan.AmountPaise, -2).StringFixed(2)
	first, last := SplitName(c.Name)
	addr := shopify.Address{
		FirstName: first,
		LastName:  last,
		Phone:     c.Phone,
		Address1:  c.AddressLine1,
		Address2:  c.AddressLine2,
		City:      c.City,
		Province:  c.State,
		Country:   c.Country,
		Zip:       c.Pincode,
	}
	return shopify.OrderInput{
		Email:                  c.Email,
		Phone:                  c.Phone,
		LineItems:              []shopify.LineItem{{VariantID: variantID, Quantity: 1, Price: amount}},
		ShippingAddress:        addr,
		BillingAddress:         addr,
		FinancialStatus:        "paid",
		SendReceipt:            true,
		SendFulfillmentReceipt: false,
		Tags: strings.Join([]string{
			shopify.AutopayCheckoutSource,
			"razorpay-autopay",
			"rzp-sub-" + subscriptionID,
			"rzp-pay-" + paymentID,
			plan.ID,
		}, ", "),
		Note: note,
		NoteAttributes: []shopify.NoteAttribute{
			{Name: "checkout_source", Value: shopify.AutopayCheckoutSource},
			{Name: "razorpay_subscription_id", Value: subscriptionID},
			{Name: "razorpay_payment_id", Value: paymentID},
			{Name: "razorpay_subscription_status", Value: sub.Status},
			{Name: "recurring_plan", Value: plan.ID},
			{Name: "recurring_amount_inr", Value: strconv.FormatInt(plan.AmountInr, 10)},
			{Name: "recurring_total_count", Value: strconv.Itoa(plan.TotalCount)},
		},
		Transactions: []shopify.Transaction{{
			Kind:          "sale",
			Status:        "success",
			Amount:        amount,
			Gateway:       "Razorpay",
			Authorization: paymentID,
		}},
	}
}

func orderRefFromMapping(o *models.AutopayOrder) *shopify.OrderRef {
	ref := &shopify.OrderRef{}
	if o.ShopifyOrderID != nil {
		ref.ID = *o.ShopifyOrderID
	}
	if o.ShopifyOrderName != nil {
		ref.Name = *o.ShopifyOrderName
	}
	return ref
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}
