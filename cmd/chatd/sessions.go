package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/history"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and edit chat history",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: withHistory(func(cmd *cobra.Command, h *history.Manager, args []string) error {
		sessions, err := h.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		return printSessions(cmd.OutOrStdout(), sessions)
	}),
}

var sessionsMessagesCmd = &cobra.Command{
	Use:   "messages [session-id]",
	Short: "Print a session's messages in order",
	Args:  cobra.ExactArgs(1),
	RunE: withHistory(func(cmd *cobra.Command, h *history.Manager, args []string) error {
		msgs, err := h.ListMessages(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printMessages(cmd.OutOrStdout(), msgs)
		return nil
	}),
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: withHistory(func(cmd *cobra.Command, h *history.Manager, args []string) error {
		if err := h.DeleteSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session deleted")
		return nil
	}),
}

var sessionsUndoCmd = &cobra.Command{
	Use:   "undo [session-id]",
	Short: "Remove the last turn of a session",
	Args:  cobra.ExactArgs(1),
	RunE: withHistory(func(cmd *cobra.Command, h *history.Manager, args []string) error {
		n, err := h.UndoLastTurn(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to undo")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Undo successful: %d message(s) deleted\n", n)
		return nil
	}),
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsMessagesCmd, sessionsDeleteCmd, sessionsUndoCmd)
}

// withHistory opens the configured store for the duration of one command.
func withHistory(fn func(*cobra.Command, *history.Manager, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, history.New(store, logger.Named("history")), args)
	}
}

func printSessions(out io.Writer, sessions []chat.Session) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tTITLE")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.CreatedAt.Local().Format(time.DateTime), s.Title)
	}
	return w.Flush()
}

func printMessages(out io.Writer, msgs []chat.Message) {
	for _, m := range msgs {
		fmt.Fprintf(out, "#%d %s [%s]\n%s\n\n", m.Seq, m.Role, m.CreatedAt.Local().Format(time.DateTime), m.Content)
	}
}
