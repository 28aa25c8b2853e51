package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"beacon/internal/ipc"
)

func newFlushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Deliver pending outbox items now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Flush()
				if err != nil {
					return fmt.Errorf("flush outbox: %w", err)
				}
				stdout := cmd.OutOrStdout()
				switch resp.Sent {
				case 0:
					fmt.Fprintln(stdout, "Nothing to deliver")
				case 1:
					fmt.Fprintln(stdout, "Delivered 1 item")
				default:
					fmt.Fprintf(stdout, "Delivered %d items\n", resp.Sent)
				}
				return nil
			})
		},
	}
}
