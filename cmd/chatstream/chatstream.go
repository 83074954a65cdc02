// Package chatstreamcmder
package chatstreamcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/chatstream/cmd/chatstream/auth"
	chatcmder "github.com/papercomputeco/chatstream/cmd/chatstream/chat"
	configcmder "github.com/papercomputeco/chatstream/cmd/chatstream/config"
	feedbackcmder "github.com/papercomputeco/chatstream/cmd/chatstream/feedback"
	servecmder "github.com/papercomputeco/chatstream/cmd/chatstream/serve"
	showcmder "github.com/papercomputeco/chatstream/cmd/chatstream/show"
	versioncmder "github.com/papercomputeco/chatstream/cmd/version"
)

const chatstreamLongDesc string = `chatstream is a terminal client for streaming chat backends.

Get started:
  chatstream serve                  Run the development backend
  chatstream auth --user-id dev     Store a bearer token
  chatstream chat                   Chat with streamed replies
  chatstream show <chat-id>         Print a transcript
  chatstream feedback <id> like     Rate a reply`

const chatstreamShortDesc string = "chatstream - streaming chat client"

func NewChatstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatstream",
		Short:        chatstreamShortDesc,
		Long:         chatstreamLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatstream/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(showcmder.NewShowCmd())
	cmd.AddCommand(feedbackcmder.NewFeedbackCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
