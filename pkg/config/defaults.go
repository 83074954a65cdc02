package config

const (
	defaultServerListen = ":8081"
	defaultServerUserID = "dev-user"
	defaultTokenDelayMS = 40

	defaultClientAPITarget = "http://localhost:8081"
	defaultClientProjectID = "default"
	defaultClientProfile   = "default"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
			ProjectID: defaultClientProjectID,
			Profile:   defaultClientProfile,
		},
		Server: ServerConfig{
			Listen:       defaultServerListen,
			UserID:       defaultServerUserID,
			TokenDelayMS: defaultTokenDelayMS,
		},
	}
}
