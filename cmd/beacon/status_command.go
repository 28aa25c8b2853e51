package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"beacon/internal/ipc"
	"beacon/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agent and outbox status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return fmt.Errorf("fetch status: %w", err)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Agent", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Running", boolKind(resp.Running), fmt.Sprintf("pid %d", resp.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Panic state", panicKind(resp.PanicState), panicDetail(resp), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Netlink", boolKind(resp.Netlink), netlinkDetail(resp.Netlink), colorize))
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Outbox", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderQueueStats(resp.QueueStats))
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Paths", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Outbox database", statusInfo, resp.QueueDBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Lock file", statusInfo, resp.LockPath, colorize))
				return nil
			})
		},
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusWarn
}

func panicKind(state string) statusKind {
	if state == "idle" {
		return statusOK
	}
	return statusError
}

func panicDetail(resp *ipc.StatusResponse) string {
	if resp.SessionID == "" {
		return ""
	}
	return "session " + resp.SessionID
}

func netlinkDetail(active bool) string {
	if active {
		return "watching interfaces"
	}
	return "periodic flush only"
}

func renderQueueStats(stats map[string]int) string {
	rows := make([][]string, 0, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		rows = append(rows, []string{string(status), strconv.Itoa(stats[string(status)])})
	}
	return renderTable(
		[]string{"Status", "Items"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	)
}
