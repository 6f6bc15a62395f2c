package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/invoice"
)

func reconcileCmd() *cobra.Command {
	var (
		paymentID      string
		subscriptionID string
		planID         string
		skipInvoice    bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Create the order and invoice for a captured autopay payment",
		Long: "Runs the same reconciliation as the verify endpoint and the webhook. " +
			"It is safe to run repeatedly: an existing order or invoice is reported, not duplicated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if paymentID == "" || subscriptionID == "" {
				return errors.New("--payment and --subscription are required")
			}
			svc, err := loadServices()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			res, err := svc.billing.EnsureAutopayOrder(ctx, billing.EnsureOrderInput{
				PaymentID:      paymentID,
				SubscriptionID: subscriptionID,
				ExpectedPlanID: planID,
				OrderNote:      "Autopay order reconciled manually",
			})
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", paymentID, err)
			}

			out := cmd.OutOrStdout()
			switch res.Status {
			case billing.OrderPaymentNotCaptured:
				fmt.Fprintf(out, "payment %s is %q, nothing created\n", paymentID, res.PaymentStatus)
				return nil
			case billing.OrderAlreadyExists:
				fmt.Fprintf(out, "order %s already exists\n", res.Order.Name)
			default:
				fmt.Fprintf(out, "created order %s\n", res.Order.Name)
			}

			if skipInvoice {
				return nil
			}
			inv, err := svc.invoices.EnsureInvoiceForAutopayPayment(ctx, invoice.EnsureInput{
				PaymentID:      paymentID,
				SubscriptionID: subscriptionID,
				SourceEvent:    "manual_reconcile",
				Customer:       &res.Customer,
				Order:          res.Order,
			})
			if err != nil {
				return fmt.Errorf("invoice for %s: %w", paymentID, err)
			}
			fmt.Fprintf(out, "invoice %s (created=%t, emailed=%t) %s\n",
				inv.InvoiceNumber, inv.Created, inv.EmailSent, svc.invoices.Renderer().PublicURL(inv.PublicToken))
			return nil
		},
	}

	cmd.Flags().StringVar(&paymentID, "payment", "", "Razorpay payment id")
	cmd.Flags().StringVarP(&subscriptionID, "subscription", "s", "", "Razorpay subscription id")
	cmd.Flags().StringVarP(&planID, "plan", "p", "", "expected plan id (monthly-autopay or annual-autopay)")
	cmd.Flags().BoolVar(&skipInvoice, "no-invoice", false, "only reconcile the order")
	return cmd
}
