package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/port/worker"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's recent interactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.user == "" {
				return errors.New("--user is required")
			}
			ep := worker.Endpoint{Name: envelope.ServiceMemory, URL: opts.memory}
			reply, raw, err := call[envelope.HistoryReply](cmd.Context(), opts, ep, envelope.GetHistory{
				Task:   envelope.TaskGetHistory,
				UserID: opts.user,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.raw {
				return printJSON(out, raw)
			}
			if len(reply.History) == 0 {
				fmt.Fprintln(out, "no interactions")
				return nil
			}
			for _, e := range reply.History {
				fmt.Fprintf(out, "%s  %-6s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Role, e.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum entries to show")
	return cmd
}
