// Package authcmder provides the auth command for storing backend credentials.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/credentials"
)

const authLongDesc string = `Store the bearer token used to reach the chat backend.

Credentials are stored in credentials.toml in the .chatstream/ directory under
a named profile. Each profile holds a token and the user id messages are sent
as. Running chat sessions pick up a changed token without restarting.

Examples:
  chatstream auth --user-id clerk_123              Prompt for a token
  chatstream auth --profile staging --user-id u1   Store a second profile
  chatstream auth --list                           List stored profiles
  chatstream auth --remove staging                 Remove a profile
  echo $TOKEN | chatstream auth --user-id u1       Pipe the token from stdin`

const authShortDesc string = "Store backend credentials"

type authCommander struct {
	profile string
	userID  string
	list    bool
	remove  string

	in  io.Reader
	out io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			switch {
			case cmder.list:
				return cmder.runList(configDir)
			case cmder.remove != "":
				return cmder.runRemove(configDir)
			default:
				return cmder.runAuth(configDir)
			}
		},
	}

	cmd.Flags().StringVar(&cmder.profile, "profile", credentials.DefaultProfile, "Credentials profile name")
	cmd.Flags().StringVar(&cmder.userID, "user-id", "", "User id to send messages as")
	cmd.Flags().BoolVar(&cmder.list, "list", false, "List stored profiles")
	cmd.Flags().StringVar(&cmder.remove, "remove", "", "Remove a stored profile")

	return cmd
}

func (c *authCommander) runAuth(configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	existing, found, err := mgr.GetProfile(c.profile)
	if err != nil {
		return err
	}

	userID := strings.TrimSpace(c.userID)
	if userID == "" && found {
		userID = existing.UserID
	}
	if userID == "" {
		return errors.New("user id required: pass --user-id")
	}

	token, err := c.readToken()
	if err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}

	if err := mgr.SetProfile(c.profile, credentials.Profile{Token: token, UserID: userID}); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored profile %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(c.profile),
		cliui.DimStyle.Render("(user "+userID+")"),
	)
	return nil
}

func (c *authCommander) runList(configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	profiles, err := mgr.ListProfiles()
	if err != nil {
		return err
	}

	if len(profiles) == 0 {
		fmt.Fprintf(c.out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'chatstream auth --user-id <id>' to store a token.\n\n")
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored profiles"))
	for _, name := range profiles {
		p, _, err := mgr.GetProfile(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(name),
			cliui.DimStyle.Render("→ "+p.UserID),
		)
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *authCommander) runRemove(configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveProfile(c.remove); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed profile %s.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(c.remove))

	return nil
}

// readToken reads the token from stdin. Piped input supplies the first line;
// a terminal gets a prompt with hidden input.
func (c *authCommander) readToken() (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(c.out, "Enter token for profile %s: ", c.profile)

		tokenBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return string(tokenBytes), nil
	}

	scanner := bufio.NewScanner(c.in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
