// Package interfaces defines service contracts for HubLink
package interfaces

import (
	"context"

	"github.com/salesdiver/hublink/internal/models"
)

// TokenStore persists OAuth token records as opaque secrets, namespaced per
// integration. It is the sole owner of persisted token state.
type TokenStore interface {
	// Token returns the stored record, or (nil, nil) when nothing is stored.
	Token(ctx context.Context) (*models.TokenRecord, error)

	// SaveToken persists the record, replacing any prior one.
	SaveToken(ctx context.Context, record *models.TokenRecord) error

	// ClearToken removes all persisted token state.
	ClearToken(ctx context.Context) error
}

// OpportunityStore manages locally persisted opportunities.
type OpportunityStore interface {
	GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error)
	SaveOpportunity(ctx context.Context, opp *models.Opportunity) error
	ListOpportunities(ctx context.Context) ([]*models.Opportunity, error)
	DeleteOpportunity(ctx context.Context, id string) error
}

// CompanyStore manages locally persisted companies.
type CompanyStore interface {
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	SaveCompany(ctx context.Context, company *models.Company) error
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	DeleteCompany(ctx context.Context, id string) error
}

// LocalStore is the combined local entity store. Saves emit an
// EntityChangedEvent on the Events channel (non-blocking, best-effort).
type LocalStore interface {
	OpportunityStore
	CompanyStore

	// Events returns the change notification channel.
	Events() <-chan models.EntityChangedEvent

	Close() error
}
