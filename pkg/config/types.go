package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent chatstream configuration stored as
// config.toml in the .chatstream/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version int          `toml:"version"`
	Client  ClientConfig `toml:"client"`
	Server  ServerConfig `toml:"server"`
}

// ClientConfig holds settings for CLI commands that talk to a chat backend
// (e.g. chatstream chat, chatstream show, chatstream feedback).
type ClientConfig struct {
	// APITarget is the backend origin (scheme + host + port).
	APITarget string `toml:"api_target,omitempty"`

	// ProjectID scopes new and resumed chats.
	ProjectID string `toml:"project_id,omitempty"`

	// UserID overrides the user id stored with the credentials profile.
	UserID string `toml:"user_id,omitempty"`

	// Profile selects the credentials.toml profile.
	Profile string `toml:"profile,omitempty"`
}

// ServerConfig holds settings for the development backend started by
// "chatstream serve".
type ServerConfig struct {
	Listen     string `toml:"listen,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`

	// LogFile additionally receives JSON log records when set.
	LogFile string `toml:"log_file,omitempty"`

	// Token is the bearer token the backend accepts. Empty accepts any
	// non-empty bearer.
	Token string `toml:"token,omitempty"`

	// UserID is recorded as the author of messages the backend persists.
	UserID string `toml:"user_id,omitempty"`

	// TokenDelayMS paces streamed tokens.
	TokenDelayMS uint `toml:"token_delay_ms,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"client.project_id": {
		get: func(c *Config) string { return c.Client.ProjectID },
		set: func(c *Config, v string) error { c.Client.ProjectID = v; return nil },
	},
	"client.user_id": {
		get: func(c *Config) string { return c.Client.UserID },
		set: func(c *Config, v string) error { c.Client.UserID = v; return nil },
	},
	"client.profile": {
		get: func(c *Config) string { return c.Client.Profile },
		set: func(c *Config, v string) error { c.Client.Profile = v; return nil },
	},
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.sqlite_path": {
		get: func(c *Config) string { return c.Server.SQLitePath },
		set: func(c *Config, v string) error { c.Server.SQLitePath = v; return nil },
	},
	"server.log_file": {
		get: func(c *Config) string { return c.Server.LogFile },
		set: func(c *Config, v string) error { c.Server.LogFile = v; return nil },
	},
	"server.token": {
		get: func(c *Config) string { return c.Server.Token },
		set: func(c *Config, v string) error { c.Server.Token = v; return nil },
	},
	"server.user_id": {
		get: func(c *Config) string { return c.Server.UserID },
		set: func(c *Config, v string) error { c.Server.UserID = v; return nil },
	},
	"server.token_delay_ms": {
		get: func(c *Config) string {
			if c.Server.TokenDelayMS == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Server.TokenDelayMS), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for server.token_delay_ms: %w", err)
			}
			c.Server.TokenDelayMS = uint(n)
			return nil
		},
	},
}
