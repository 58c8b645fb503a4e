package demo

import (
	"time"

	"meetexport/internal/auth"
)

// Credentials reports a permanent session for demo mode.
type Credentials struct{}

// Status implements preflight.CredentialReporter.
func (Credentials) Status() (auth.Status, error) {
	return auth.Status{
		LoggedIn:        true,
		Email:           "demo@example.com",
		ExpiresAt:       time.Now().Add(time.Hour),
		HasRefreshToken: true,
	}, nil
}
