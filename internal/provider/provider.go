// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"

	"github.com/shineum/brevo-relay/internal/email"
)

// Provider is the interface that email delivery backends must implement.
// Each provider translates a parsed message and its transport envelope
// into one delivery attempt against the target service.
type Provider interface {
	// Send delivers a message using the envelope's sender and recipients
	// for transport-level routing. On success it returns the identifier
	// the backend assigned to the message. Errors are terminal for the
	// attempt; providers do not retry.
	Send(ctx context.Context, msg *email.Email, env *email.Envelope) (string, error)

	// Name returns the human-readable name of this provider.
	Name() string
}
