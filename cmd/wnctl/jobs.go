package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wandernook/wandernook/internal/pkg/cache"
	"github.com/wandernook/wandernook/internal/pkg/jobqueue"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the invoice archive queue",
	}
	cmd.AddCommand(jobsStatsCmd(), jobsSweepCmd(), jobsShowCmd())
	return cmd
}

// jobsManager wires a queue without workers; the server runs them.
func jobsManager(svc *services) *jobqueue.Manager {
	queue := jobqueue.NewQueue(cache.Setup(svc.cfg.Cache), svc.cfg.Jobs.Workers)
	svc.invoices.UseArchive(queue, nil)
	return jobqueue.NewManager(queue, svc.invoices.EnqueueArchiveBacklog, 0)
}

func jobsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue depths and completed, retried and failed totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices()
			if err != nil {
				return err
			}
			defer cache.Close()
			m := jobsManager(svc)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			s, err := m.Queue().Stats(ctx)
			if err != nil {
				return fmt.Errorf("read queue stats: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pending\t%d\nprocessing\t%d\nscheduled\t%d\n", s.Pending, s.Processing, s.Scheduled)
			fmt.Fprintf(out, "completed\t%d\nretried\t%d\nfailed\t%d\n", s.Completed, s.Retried, s.Failed)
			return nil
		},
	}
}

func jobsSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Queue archive uploads for invoices missing from the bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices()
			if err != nil {
				return err
			}
			defer cache.Close()
			m := jobsManager(svc)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			n, err := m.RunBacklogOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d archive jobs\n", n)
			return nil
		},
	}
}

func jobsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [job-id]",
		Short: "Print a queued, retrying or failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices()
			if err != nil {
				return err
			}
			defer cache.Close()
			m := jobsManager(svc)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			job, err := m.Queue().Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		},
	}
}
