// Package interfaces defines service contracts for HubLink
package interfaces

import (
	"context"
	"net/url"

	"github.com/salesdiver/hublink/internal/models"
)

// AuthService manages the HubSpot OAuth2 authorization-code + PKCE lifecycle.
type AuthService interface {
	TokenProvider

	// BeginAuthorization starts a new authorization attempt, replacing any
	// in-flight PKCE session, and returns the fully formed authorize URL.
	BeginAuthorization() (*url.URL, error)

	// HandleCallback consumes the OAuth redirect. The active PKCE session is
	// discarded whether or not the exchange succeeds.
	HandleCallback(ctx context.Context, callback *url.URL) error

	// Disconnect clears all persisted token state.
	Disconnect(ctx context.Context) error

	// IsConnected reports whether any access or refresh token is stored.
	IsConnected(ctx context.Context) bool
}

// SyncService reconciles local entities against their HubSpot counterparts.
// Each call is one entity, one direction.
type SyncService interface {
	// SyncOpportunity reconciles one opportunity. Unlinked entities and
	// missing remote records are silent no-ops.
	SyncOpportunity(ctx context.Context, opp *models.Opportunity) error

	// SyncCompany is part of the contract but intentionally inert.
	SyncCompany(ctx context.Context, company *models.Company) error

	// SyncAllOnStartup is part of the contract but intentionally inert.
	SyncAllOnStartup(ctx context.Context) error

	// Run subscribes to local change events and syncs best-effort until the
	// context is cancelled.
	Run(ctx context.Context)
}
