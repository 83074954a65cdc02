package credentials

// DefaultProfile is used when no profile name is given.
const DefaultProfile = "default"

// Credentials represents the stored bearer credentials in credentials.toml.
type Credentials struct {
	Version  int                `toml:"version"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile holds the bearer token and user identity for one account.
type Profile struct {
	Token  string `toml:"token"`
	UserID string `toml:"user_id"`
}
