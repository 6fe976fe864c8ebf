// Package identity is the client for the external identity provider that owns
// human authentication for the plane. The provider is authoritative for "does
// this email already have an account" and for invitation email delivery; this
// package never implements SMTP or token signing for human credentials itself.
package identity

import (
	"context"
	"errors"
)

// ErrEmailConflict is returned by InviteByEmail when the provider reports the
// email already has an account. Callers resolve the conflict by looking the
// account up (GenerateInviteLink) and, when it is unconfirmed, deleting it and
// retrying the invite once.
var ErrEmailConflict = errors.New("identity provider: email already has an account")

// ErrNoIdentity is returned by ResolveCurrentIdentity when the supplied
// credentials do not resolve to an account.
var ErrNoIdentity = errors.New("identity provider: no resolvable identity")

// Account describes a provider-side account as far as the plane cares about it.
type Account struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"email_confirmed"`
}

// Provider is the boundary to the external identity provider.
type Provider interface {
	// InviteByEmail asks the provider to deliver an invitation email whose
	// callback URL carries the plane's invitation token. Returns
	// ErrEmailConflict when the email already has a provider account.
	InviteByEmail(ctx context.Context, email, redirectURL string, metadata map[string]string) error

	// GenerateInviteLink resolves the provider account for an email without
	// sending mail, exposing the account id and confirmation state.
	GenerateInviteLink(ctx context.Context, email string) (*Account, error)

	// DeleteAccount removes a provider account. Used only for unconfirmed
	// dangling signups found during invitation reconciliation.
	DeleteAccount(ctx context.Context, accountID string) error

	// ResolveCurrentIdentity validates request credentials (a provider-issued
	// access token) and returns the account it identifies, or ErrNoIdentity.
	// The email claim rides along so a first-seen identity can be given a
	// member profile without a provider round-trip.
	ResolveCurrentIdentity(ctx context.Context, credentials string) (*Account, error)
}
