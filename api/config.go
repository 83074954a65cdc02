// Package api provides the development chat backend: a fiber server that
// stores chats and streams assistant replies as server-sent events.
package api

import (
	"time"

	"github.com/papercomputeco/chatstream/pkg/responder"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Token is the bearer token clients must present. When empty any
	// non-empty bearer token is accepted.
	Token string

	// UserID owns the chats and messages created through this server.
	UserID string

	// Responder generates assistant replies. Defaults to responder.Echo
	// with TokenDelay between tokens.
	Responder responder.Responder

	TokenDelay time.Duration
}
