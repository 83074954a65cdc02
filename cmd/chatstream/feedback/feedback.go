// Package feedbackcmder provides the feedback command for rating an assistant
// message.
package feedbackcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/cmd/chatstream/clientopts"
	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/logger"
)

const feedbackLongDesc string = `Rate an assistant message as helpful or unhelpful.

Examples:
  chatstream feedback 9a1b... like
  chatstream feedback 9a1b... dislike --comment "cited the wrong page" --category citation`

const feedbackShortDesc string = "Rate an assistant message"

func NewFeedbackCmd() *cobra.Command {
	var (
		opts     clientopts.Options
		comment  string
		category string
	)

	cmd := &cobra.Command{
		Use:       "feedback <message-id> <like|dislike>",
		Short:     feedbackShortDesc,
		Long:      feedbackLongDesc,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(chat.RatingLike), string(chat.RatingDislike)},
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.Resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := chat.ParseRating(args[1])
			if err != nil {
				return err
			}
			fb := chat.Feedback{MessageID: args[0], Rating: rating, Comment: comment, Category: category}
			if err := fb.Validate(); err != nil {
				return err
			}

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

			if err := conn.Client.SubmitFeedback(ctx, fb); err != nil {
				return fmt.Errorf("submitting feedback: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Recorded %s for %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(string(rating)),
				cliui.HashStyle.Render(fb.MessageID),
			)
			return nil
		},
	}

	clientopts.Register(cmd, &opts)
	cmd.Flags().StringVar(&comment, "comment", "", "Optional comment")
	cmd.Flags().StringVar(&category, "category", "", "Optional category (e.g. citation, accuracy)")

	return cmd
}
