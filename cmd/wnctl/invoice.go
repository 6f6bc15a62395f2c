package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func invoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Inspect and resend invoices",
	}
	cmd.AddCommand(invoiceListCmd(), invoiceResendCmd(), invoicePDFCmd())
	return cmd
}

func invoiceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [query]",
		Short: "List recent invoices, optionally filtered by number, email or payment id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			invoices, err := svc.invoices.ListInvoices(ctx, query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, inv := range invoices {
				sent := "-"
				if inv.EmailSentAt != nil {
					sent = inv.EmailSentAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%s\n", inv.ID, inv.InvoiceNumber, inv.Customer.Email, inv.AmountPaise, sent)
			}
			return nil
		},
	}
}

func invoiceResendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend [invoice-id]",
		Short: "Email an invoice to its customer again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			res, err := svc.invoices.ResendInvoiceEmail(ctx, args[0])
			if err != nil {
				return err
			}
			if !res.EmailSent {
				fmt.Fprintf(cmd.OutOrStdout(), "not sent: %s\n", res.EmailSkippedReason)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}

func invoicePDFCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pdf [public-token]",
		Short: "Render an invoice PDF to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			data, err := svc.invoices.RenderPDF(ctx, args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = "invoice-" + args[0] + ".pdf"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default invoice-<token>.pdf)")
	return cmd
}
