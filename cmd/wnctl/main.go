package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/database"
	"github.com/wandernook/wandernook/internal/pkg/env"
	"github.com/wandernook/wandernook/internal/pkg/invoice"
	"github.com/wandernook/wandernook/internal/pkg/mail"
	"github.com/wandernook/wandernook/internal/pkg/newsletter"
	"github.com/wandernook/wandernook/internal/pkg/tracking"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "wnctl",
		Short:         "Wander Nook operations: reconcile payments, resend invoices, send newsletters, sweep archive jobs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(invoiceCmd())
	rootCmd.AddCommand(newsletterCmd())
	rootCmd.AddCommand(jobsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// services holds the same wiring as the server, without HTTP.
type services struct {
	cfg        *config.Config
	billing    *billing.Service
	invoices   *invoice.Service
	newsletter *newsletter.Service
}

func loadServices() (*services, error) {
	env.SetupEnvFile()
	cfg := config.Load()

	db, err := database.Setup(cfg.Database, false)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	b := billing.NewServiceFromDB(db, cfg)
	mailer := mail.NewDispatcher(cfg.Mail)
	tracker := tracking.NewTracker(tracking.NewStore(db))
	renderer := invoice.NewRenderer(cfg.Invoice, cfg.App.SiteURL)

	return &services{
		cfg:        cfg,
		billing:    b,
		invoices:   invoice.NewService(invoice.NewRepository(db), b, mailer, renderer),
		newsletter: newsletter.NewService(newsletter.NewRepository(db), mailer, tracker),
	}, nil
}
