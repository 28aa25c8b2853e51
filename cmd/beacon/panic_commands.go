package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"beacon/internal/ipc"
)

func newPanicCommand(ctx *commandContext) *cobra.Command {
	panicCmd := &cobra.Command{
		Use:   "panic",
		Short: "Control panic sessions",
	}

	activateCmd := &cobra.Command{
		Use:   "activate",
		Short: "Raise an SOS and start a panic session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PanicActivate()
				if err != nil {
					return fmt.Errorf("activate panic: %w", err)
				}
				stdout := cmd.OutOrStdout()
				if !resp.Activated {
					msg := strings.TrimSpace(resp.Message)
					if msg == "" {
						msg = "a panic session is already active"
					}
					fmt.Fprintln(stdout, msg)
					return nil
				}
				fmt.Fprintf(stdout, "Panic session %s active; SOS queued on all channels\n", resp.SessionID)
				return nil
			})
		},
	}

	deactivateCmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Resolve the active panic session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PanicDeactivate()
				if err != nil {
					return fmt.Errorf("deactivate panic: %w", err)
				}
				stdout := cmd.OutOrStdout()
				if !resp.Deactivated {
					fmt.Fprintln(stdout, "No panic session is active")
					return nil
				}
				fmt.Fprintln(stdout, "Panic session resolved")
				return nil
			})
		},
	}

	panicCmd.AddCommand(activateCmd)
	panicCmd.AddCommand(deactivateCmd)
	return panicCmd
}
