// Package clientopts wires the shared client flags, config, and credentials
// into a backend client for the chatstream commands that talk to a backend.
package clientopts

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/client"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/credentials"
)

// Options holds the resolved client settings for one command invocation.
type Options struct {
	APITarget string
	ProjectID string
	UserID    string
	Profile   string

	ConfigDir string
	Debug     bool
}

var registryKeys = []string{
	config.FlagAPITarget,
	config.FlagProjectID,
	config.FlagUserID,
	config.FlagProfile,
}

// Register adds the client flags to cmd.
func Register(cmd *cobra.Command, o *Options) {
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &o.APITarget)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagProjectID, &o.ProjectID)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagUserID, &o.UserID)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagProfile, &o.Profile)
}

// Resolve merges flags, environment, and config.toml into o. Call it from
// PreRunE.
func (o *Options) Resolve(cmd *cobra.Command) error {
	o.ConfigDir, _ = cmd.Flags().GetString("config-dir")
	o.Debug, _ = cmd.Flags().GetBool("debug")

	v, err := config.InitViper(o.ConfigDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.ClientFlags, registryKeys)

	cfg := config.Unmarshal(v)
	o.APITarget = cfg.Client.APITarget
	o.ProjectID = cfg.Client.ProjectID
	o.UserID = cfg.Client.UserID
	o.Profile = cfg.Client.Profile

	if o.APITarget == "" {
		return errors.New("no backend configured; pass --api-target or set client.api_target")
	}
	return nil
}

// Connection is a backend client with the identity it acts as.
type Connection struct {
	Client *client.Client
	UserID string

	tokens *credentials.WatchedSource
}

// Close stops watching the credentials file.
func (c *Connection) Close() error {
	return c.tokens.Close()
}

// Connect builds a client that authenticates with the configured credentials
// profile. The user id flag overrides the one stored with the profile.
func (o *Options) Connect(l *slog.Logger) (*Connection, error) {
	mgr, err := credentials.NewManager(o.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	tokens, err := credentials.NewWatchedSource(mgr, o.Profile, l)
	if err != nil {
		return nil, err
	}

	c, err := client.New(client.Config{
		BaseURL: o.APITarget,
		Tokens:  tokens,
		Logger:  l,
	})
	if err != nil {
		_ = tokens.Close()
		return nil, err
	}

	userID := o.UserID
	if userID == "" {
		userID = tokens.Profile().UserID
	}

	return &Connection{Client: c, UserID: userID, tokens: tokens}, nil
}
