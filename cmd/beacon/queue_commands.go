package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/ipc"
	"beacon/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the outbox",
	}

	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueuePurgeCommand(ctx))
	return queueCmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show outbox counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueStats()
				if err != nil {
					return fmt.Errorf("fetch queue stats: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderQueueStats(resp.Stats))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var statuses []queue.Status
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				status, ok := queue.ParseStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q", trimmed)
				}
				statuses = append(statuses, status)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open outbox: %w", err)
			}
			defer store.Close()

			items, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list outbox: %w", err)
			}

			stdout := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(stdout, "Outbox is empty")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					string(item.Kind),
					string(item.Channel),
					strconv.Itoa(item.Priority),
					string(item.Status),
					fmt.Sprintf("%d/%d", item.Attempts, item.MaxAttempts),
					item.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"ID", "Kind", "Channel", "Priority", "Status", "Attempts", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show items with this status (pending, sending, sent, failed)")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Return failed items to the pending pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RetryFailed()
				if err != nil {
					return fmt.Errorf("retry failed items: %w", err)
				}
				stdout := cmd.OutOrStdout()
				if resp.Updated == 0 {
					fmt.Fprintln(stdout, "No failed items to retry")
					return nil
				}
				fmt.Fprintf(stdout, "Requeued %d failed item(s)\n", resp.Updated)
				return nil
			})
		},
	}
}

func newQueuePurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove delivered items from the outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PurgeSent()
				if err != nil {
					return fmt.Errorf("purge sent items: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d sent item(s)\n", resp.Removed)
				return nil
			})
		},
	}
}
