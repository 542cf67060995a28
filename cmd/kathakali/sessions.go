package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/kathakali/internal/store"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Show recent tracking sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			st, err := openStore(ctx.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.Sessions().Recent(limit)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tracking sessions recorded.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSessions(sessions))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of sessions to show")
	return cmd
}

func renderSessions(sessions []*store.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		duration := "running"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			s.Status,
			strconv.FormatInt(s.Frames, 10),
			strconv.FormatInt(s.Faces, 10),
			s.Error,
		})
	}
	return renderTable(
		[]string{"STARTED", "DURATION", "STATUS", "FRAMES", "FACES", "ERROR"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight},
	)
}
