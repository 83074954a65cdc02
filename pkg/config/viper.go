package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatstream/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATSTREAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATSTREAM_CLIENT_API_TARGET, CHATSTREAM_SERVER_TOKEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CHATSTREAM_SERVER_LISTEN, CHATSTREAM_CLIENT_PROJECT_ID, etc.
	v.SetEnvPrefix("CHATSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)
	v.SetDefault("client.project_id", d.Client.ProjectID)
	v.SetDefault("client.user_id", d.Client.UserID)
	v.SetDefault("client.profile", d.Client.Profile)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.sqlite_path", d.Server.SQLitePath)
	v.SetDefault("server.log_file", d.Server.LogFile)
	v.SetDefault("server.token", d.Server.Token)
	v.SetDefault("server.user_id", d.Server.UserID)
	v.SetDefault("server.token_delay_ms", d.Server.TokenDelayMS)
}

// Unmarshal decodes the merged viper view into a Config.
func Unmarshal(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
			ProjectID: v.GetString("client.project_id"),
			UserID:    v.GetString("client.user_id"),
			Profile:   v.GetString("client.profile"),
		},
		Server: ServerConfig{
			Listen:       v.GetString("server.listen"),
			SQLitePath:   v.GetString("server.sqlite_path"),
			LogFile:      v.GetString("server.log_file"),
			Token:        v.GetString("server.token"),
			UserID:       v.GetString("server.user_id"),
			TokenDelayMS: v.GetUint("server.token_delay_ms"),
		},
	}
}
