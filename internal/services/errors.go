// Package services implements higher-level business logic that coordinates across multiple repositories and external systems.
// The invitation service, for example, orchestrates duplicate checks, token minting, delivery through the identity provider, and the transactional accept flow — a multi-step operation that spans several domain boundaries.
package services

import "errors"

// Sentinel errors shared by all services. Handlers map these onto HTTP status
// codes; everything else surfaces as a 500.
var (
	// ErrUnauthorized means the caller presented no usable credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the caller is known but not allowed to perform the
	// action. Invariant violations (last owner, self-removal) use this too.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound covers both genuinely missing resources and resources the
	// caller may not know exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the request lost to concurrent state: duplicate
	// invitation, slug exhaustion, accept race.
	ErrConflict = errors.New("conflict")

	// ErrExpiredToken means an invitation token's expiry has passed. The API
	// boundary reports it as not-found so token validity is never leaked.
	ErrExpiredToken = errors.New("token expired")

	// ErrUpstream means the identity provider failed; the local state is kept
	// so the operation can be retried.
	ErrUpstream = errors.New("upstream provider error")
)
