// Package showcmder provides the show command for printing a chat transcript.
package showcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/cmd/chatstream/clientopts"
	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/logger"
)

const showLongDesc string = `Print the transcript of a chat.

Assistant replies are rendered as markdown unless --raw is given.

Examples:
  chatstream show 3f2c...
  chatstream show 3f2c... --raw`

const showShortDesc string = "Print a chat transcript"

func NewShowCmd() *cobra.Command {
	var (
		opts clientopts.Options
		raw  bool
	)

	cmd := &cobra.Command{
		Use:   "show <chat-id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.Resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			l := logger.New(logger.WithDebug(opts.Debug), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))

			conn, err := opts.Connect(l)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var snapshot *chat.ChatWithMessages
			err = cliui.Step(cmd.ErrOrStderr(), "Loading chat", func() error {
				var err error
				snapshot, err = conn.Client.LoadChat(ctx, args[0])
				return err
			})
			if err != nil {
				return fmt.Errorf("loading chat: %w", err)
			}

			out := cmd.OutOrStdout()
			title := snapshot.Title
			if title == "" {
				title = "untitled"
			}
			fmt.Fprintf(out, "\n  %s %s\n\n",
				cliui.HeaderStyle.Render(title),
				cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(snapshot.Messages))),
			)
			cliui.PrintTranscript(out, snapshot.Messages, !raw)

			return nil
		},
	}

	clientopts.Register(cmd, &opts)
	cmd.Flags().BoolVar(&raw, "raw", false, "Print replies without markdown rendering")

	return cmd
}
