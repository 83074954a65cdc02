// Package utils holds small helpers shared by the CLI and the backend client.
package utils

// Build metadata, overridden at link time with -ldflags "-X".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies this build to the chat backend, e.g.
// "chatstream/v0.2.0 (1a2b3c4)".
func UserAgent() string {
	return "chatstream/" + Version + " (" + Sha + ")"
}
