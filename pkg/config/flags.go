package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --api-target
// on "chatstream chat", "chatstream show" and "chatstream feedback").
type Flag struct {
	// Name is the long flag name (e.g. "api-target").
	Name string

	// Shorthand is the one-letter short flag (e.g. "a"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.api_target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPITarget    = "api-target"
	FlagProjectID    = "project"
	FlagUserID       = "user-id"
	FlagProfile      = "profile"
	FlagListen       = "listen"
	FlagSQLite       = "sqlite"
	FlagLogFile      = "log-file"
	FlagServerToken  = "token"
	FlagServerUserID = "server-user-id"
	FlagTokenDelay   = "token-delay-ms"
)

// ClientFlags is the registry of flags shared by client commands.
var ClientFlags = FlagSet{
	FlagAPITarget: {
		Name:        "api-target",
		Shorthand:   "a",
		ViperKey:    "client.api_target",
		Description: "Chat backend URL",
	},
	FlagProjectID: {
		Name:        "project",
		Shorthand:   "p",
		ViperKey:    "client.project_id",
		Description: "Project id that scopes chats",
	},
	FlagUserID: {
		Name:        "user-id",
		ViperKey:    "client.user_id",
		Description: "User id to send as (defaults to the credentials profile)",
	},
	FlagProfile: {
		Name:        "profile",
		ViperKey:    "client.profile",
		Description: "Credentials profile to use",
	},
}

// ServerFlags is the registry of flags for the development backend.
var ServerFlags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "server.listen",
		Description: "Address for the backend to listen on",
	},
	FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "server.sqlite_path",
		Description: "Path to SQLite database (default: in-memory)",
	},
	FlagLogFile: {
		Name:        "log-file",
		ViperKey:    "server.log_file",
		Description: "Also write JSON logs to this file",
	},
	FlagServerToken: {
		Name:        "token",
		ViperKey:    "server.token",
		Description: "Bearer token the backend accepts (default: any)",
	},
	FlagServerUserID: {
		Name:        "user-id",
		ViperKey:    "server.user_id",
		Description: "User id recorded on persisted messages",
	},
	FlagTokenDelay: {
		Name:        "token-delay-ms",
		ViperKey:    "server.token_delay_ms",
		Description: "Delay between streamed tokens in milliseconds",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
