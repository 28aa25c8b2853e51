package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/queue"
	"beacon/internal/sos"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var subjectFilter string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List panic sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open outbox: %w", err)
			}
			defer store.Close()

			sessions, err := sos.NewStore(store).List(cmd.Context(), strings.TrimSpace(subjectFilter))
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			stdout := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(stdout, "No panic sessions recorded")
				return nil
			}

			rows := make([][]string, 0, len(sessions))
			for _, session := range sessions {
				rows = append(rows, []string{
					session.ID,
					session.SubjectID,
					sessionState(session),
					formatLocation(session),
					formatBattery(session.Battery),
					strings.Join(session.ChannelsUsed, ","),
					session.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"Session", "Subject", "State", "Location", "Battery", "Channels", "Started"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&subjectFilter, "subject", "", "Only show sessions for this subject")
	return cmd
}

func sessionState(session *sos.Session) string {
	if session.Resolved {
		return "resolved"
	}
	return "active"
}

func formatLocation(session *sos.Session) string {
	if session.Latitude == nil || session.Longitude == nil {
		return "-"
	}
	return fmt.Sprintf("%.5f,%.5f", *session.Latitude, *session.Longitude)
}

func formatBattery(battery *int) string {
	if battery == nil {
		return "-"
	}
	return fmt.Sprintf("%d%%", *battery)
}
