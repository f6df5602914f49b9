package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/chat/orchestrator"
)

var (
	askImage string
	askFiles []string
	askPlain bool
)

var askCmd = &cobra.Command{
	Use:   "ask [session-id] [message...]",
	Short: "Run one chat turn and print the reply",
	Long: `Runs a single turn through the same routing as POST /chat and renders
the reply as markdown in the terminal.

Example:
  chatd ask 1b4e28ba-2fa1-11d2-883f-0016d3cca427 write a python script
  chatd ask <id> what is in this picture --image ./cat.png
  chatd ask <id> summarize this --file ./report.pdf`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askImage, "image", "", "attach an image on disk")
	askCmd.Flags().StringArrayVar(&askFiles, "file", nil, "add a document as context (repeatable)")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "print the raw reply without markdown rendering")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orch.HandleTurn(ctx, orchestrator.Turn{
		SessionID:    args[0],
		Text:         strings.Join(args[1:], " "),
		Image:        askImage,
		ContextFiles: askFiles,
	})
	if err != nil {
		return err
	}

	if err := renderReply(cmd.OutOrStdout(), res.Reply, askPlain); err != nil {
		return err
	}
	if res.Failed {
		return fmt.Errorf("generation failed: %w", res.Err)
	}
	return nil
}

func renderReply(out io.Writer, reply string, plain bool) error {
	if plain {
		_, err := fmt.Fprintln(out, reply)
		return err
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	rendered, err := r.Render(reply)
	if err != nil {
		return fmt.Errorf("render reply: %w", err)
	}
	_, err = io.WriteString(out, rendered)
	return err
}
