package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wandernook/wandernook/internal/pkg/newsletter"
)

func newsletterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsletter",
		Short: "Newsletter operations",
	}
	cmd.AddCommand(newsletterDispatchCmd())
	return cmd
}

func newsletterDispatchCmd() *cobra.Command {
	var (
		subject  string
		htmlFile string
		textFile string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Send a newsletter issue to the newest active subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if htmlFile == "" {
				return errors.New("--html-file is required")
			}
			html, err := os.ReadFile(htmlFile)
			if err != nil {
				return err
			}
			var text []byte
			if textFile != "" {
				if text, err = os.ReadFile(textFile); err != nil {
					return err
				}
			}

			svc, err := loadServices()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			res, err := svc.newsletter.Dispatch(ctx, newsletter.DispatchInput{
				Subject: subject,
				HTML:    string(html),
				Text:    string(text),
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total=%d delivered=%d skipped=%d failed=%d\n",
				res.Total, res.Delivered, res.Skipped, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "email subject")
	cmd.Flags().StringVar(&htmlFile, "html-file", "", "path to the HTML body")
	cmd.Flags().StringVar(&textFile, "text-file", "", "path to a plain text body")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum recipients (clamped to 1..500, default 50)")
	return cmd
}
