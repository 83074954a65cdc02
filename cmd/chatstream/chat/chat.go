// Package chatcmder provides the chat command for interactive streaming chat
// against a chat backend.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/cmd/chatstream/clientopts"
	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/client"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/dotdir"
	"github.com/papercomputeco/chatstream/pkg/feedback"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/stream"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

type chatCommander struct {
	opts     clientopts.Options
	chatID   string
	newChat  bool
	title    string
	dumpPath string

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session against a chat backend.

Each line you type is sent to the chat and the assistant reply streams back
as it is generated. The last chat used in a project is remembered and resumed
on the next run; pass --new to start a fresh one or --chat to pick one.

While a reply is streaming, Ctrl+C cancels it. When idle, Ctrl+C exits.

Commands:
  /like [comment]      Rate the last reply as helpful
  /dislike [comment]   Rate the last reply as unhelpful
  /exit                Quit

Examples:
  chatstream chat
  chatstream chat --new --title "release notes"
  chatstream chat --chat 3f2c... --dump stream.log`

const chatShortDesc string = "Interactive streaming chat"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.opts.Resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			mu := &sync.Mutex{}
			cmder.in = cmd.InOrStdin()
			cmder.out = lockedWriter{mu: mu, w: cmd.OutOrStdout()}
			cmder.errOut = lockedWriter{mu: mu, w: cmd.ErrOrStderr()}
			return cmder.run(cmd.Context())
		},
	}

	clientopts.Register(cmd, &cmder.opts)
	cmd.Flags().StringVarP(&cmder.chatID, "chat", "c", "", "Chat id to open (default: the last chat used in the project)")
	cmd.Flags().BoolVar(&cmder.newChat, "new", false, "Start a new chat instead of resuming")
	cmd.Flags().StringVar(&cmder.title, "title", "", "Title for a newly created chat")
	cmd.Flags().StringVar(&cmder.dumpPath, "dump", "", "Append every raw stream byte to this file")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.New(
		logger.WithDebug(c.opts.Debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
	)

	conn, err := c.opts.Connect(c.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	snapshot, err := c.resolveChat(ctx, conn.Client)
	if err != nil {
		return err
	}

	conv := chat.NewConversation(*snapshot)

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s Chat %s %s\n",
		cliui.SuccessMark,
		cliui.HashStyle.Render(utils.Truncate(conv.ChatID(), 12)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", conv.Len())),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))
	cliui.PrintTranscript(c.out, conv.Messages(), false)

	var dump io.Writer
	if c.dumpPath != "" {
		f, err := os.OpenFile(c.dumpPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening dump file: %w", err)
		}
		defer f.Close()
		dump = f
	}

	disp, err := feedback.NewDispatcher(feedback.Config{
		Submitter: conn.Client,
		Logger:    c.logger,
		OnResult:  c.reportFeedback,
	})
	if err != nil {
		return err
	}
	defer disp.Close()

	printer := &replyPrinter{out: c.out}
	sess := stream.NewSession(stream.Config{
		Conversation: conv,
		UserID:       conn.UserID,
		Opener:       conn.Client,
		Observer:     printer,
		Dump:         dump,
		Logger:       c.logger,
	})

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// Ctrl+C cancels an in-flight reply, or quits when idle.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if sess.Streaming() {
					sess.Cancel()
					continue
				}
				stop()
				return
			}
		}
	}()

	return c.loop(ctx, sess, disp, printer)
}

// resolveChat picks the chat to open: the --chat flag, then the remembered
// chat for the project, then a newly created one.
func (c *chatCommander) resolveChat(ctx context.Context, api *client.Client) (*chat.ChatWithMessages, error) {
	ddm := dotdir.NewManager()

	chatID := c.chatID
	if chatID == "" && !c.newChat {
		remembered, err := ddm.LastChat(c.opts.ProjectID, c.opts.ConfigDir)
		if err != nil {
			c.logger.Warn("could not read session state", "error", err)
		}
		chatID = remembered
	}

	if chatID != "" {
		snapshot, err := api.LoadChat(ctx, chatID)
		var transportErr *chat.TransportError
		switch {
		case err == nil:
			c.remember(ddm, snapshot.ID)
			return snapshot, nil
		case c.chatID == "" && errors.As(err, &transportErr) && transportErr.StatusCode == 404:
			c.logger.Info("remembered chat no longer exists", "chat_id", chatID)
			_ = ddm.ForgetChat(c.opts.ProjectID, c.opts.ConfigDir)
		default:
			return nil, fmt.Errorf("loading chat: %w", err)
		}
	}

	snapshot, err := api.CreateChat(ctx, c.opts.ProjectID, c.title)
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	c.remember(ddm, snapshot.ID)
	return snapshot, nil
}

func (c *chatCommander) remember(ddm *dotdir.Manager, chatID string) {
	if err := ddm.RememberChat(c.opts.ProjectID, chatID, c.opts.ConfigDir); err != nil {
		c.logger.Warn("could not save session state", "error", err)
	}
}

// loop reads lines until EOF, /exit, or ctx is done.
func (c *chatCommander) loop(ctx context.Context, sess *stream.Session, disp *feedback.Dispatcher, printer *replyPrinter) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, cliui.UserPrompt)

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok = <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
		}

		input := strings.TrimSpace(line)
		switch {
		case input == "":
			continue
		case input == "/exit":
			return nil
		case strings.HasPrefix(input, "/like"), strings.HasPrefix(input, "/dislike"):
			c.queueFeedback(sess.Conversation(), disp, input)
			continue
		}

		printer.reset()
		out, err := sess.Send(ctx, input)
		c.report(out, err)
	}
}

func (c *chatCommander) report(out *stream.Outcome, err error) {
	switch {
	case out == nil:
		fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
	case out.State == stream.StateCompleted:
		fmt.Fprintln(c.out)
		if cites := cliui.FormatCitations(out.AIMessage.Citations); cites != "" {
			fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render(cites))
		}
		fmt.Fprintln(c.out)
	case out.State == stream.StateCancelled:
		fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render("cancelled"))
	case chat.UserVisible(err):
		fmt.Fprintf(c.errOut, "\n  %s %v\n\n", cliui.FailMark, err)
	}
}

func (c *chatCommander) queueFeedback(conv *chat.Conversation, disp *feedback.Dispatcher, input string) {
	verb, comment, _ := strings.Cut(input, " ")
	rating := chat.RatingLike
	if verb == "/dislike" {
		rating = chat.RatingDislike
	} else if verb != "/like" {
		fmt.Fprintf(c.errOut, "  %s unknown command %s\n", cliui.FailMark, verb)
		return
	}

	last, ok := conv.LastAssistant()
	if !ok {
		fmt.Fprintf(c.errOut, "  %s no reply to rate yet\n", cliui.FailMark)
		return
	}

	fb := chat.Feedback{MessageID: last.ID, Rating: rating, Comment: strings.TrimSpace(comment)}
	if !disp.Enqueue(fb) {
		fmt.Fprintf(c.errOut, "  %s feedback queue is full, try again\n", cliui.FailMark)
	}
}

// reportFeedback runs on a dispatcher worker.
func (c *chatCommander) reportFeedback(fb chat.Feedback, err error) {
	if err != nil {
		fmt.Fprintf(c.errOut, "\n  %s feedback not recorded: %v\n", cliui.FailMark, err)
		return
	}
	fmt.Fprintf(c.out, "\n  %s feedback recorded %s\n", cliui.SuccessMark, cliui.DimStyle.Render(string(fb.Rating)))
}

// lockedWriter serializes writes from the input loop and dispatcher workers.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// replyPrinter writes streamed text incrementally.
type replyPrinter struct {
	out     io.Writer
	printed int
}

func (p *replyPrinter) reset() {
	p.printed = 0
}

func (p *replyPrinter) OnStreamingText(text string) {
	if text == "" {
		return
	}
	if p.printed == 0 {
		fmt.Fprint(p.out, cliui.AssistantPrompt)
	}
	if len(text) > p.printed {
		fmt.Fprint(p.out, text[p.printed:])
		p.printed = len(text)
	}
}

func (p *replyPrinter) OnStatus(status string) {
	if status == "" || p.printed > 0 {
		return
	}
	fmt.Fprintf(p.out, "%s\n", cliui.StatusStyle.Render("("+status+")"))
}
