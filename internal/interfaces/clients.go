// Package interfaces defines service contracts for HubLink
package interfaces

import (
	"context"

	"github.com/salesdiver/hublink/internal/models"
)

// HubSpotClient provides authenticated access to the HubSpot CRM API.
//
// All methods return a uniform *hubspot.APIError for non-2xx responses;
// callers never receive partially decoded structures from a failed call.
type HubSpotClient interface {
	// ListDeals retrieves up to limit deals
	ListDeals(ctx context.Context, limit int) ([]*models.DealSummary, error)

	// SearchDeals searches deals by free-text query
	SearchDeals(ctx context.Context, query string, limit int) ([]*models.DealSummary, error)

	// GetDeal fetches the full heterogeneous payload for one deal.
	// A missing deal returns (nil, nil).
	GetDeal(ctx context.Context, dealID string) (models.DealPayload, error)

	// GetDealCompanyID resolves the first associated company id for a deal,
	// normalizing HubSpot's string-or-number id representation to a string.
	// Returns "" when the deal has no company association.
	GetDealCompanyID(ctx context.Context, dealID string) (string, error)

	// GetCompany fetches company details by id
	GetCompany(ctx context.Context, companyID string) (*models.CompanyDetails, error)

	// SearchCompanyByName finds the first company whose name contains the
	// given token (case-insensitive). Returns (nil, nil) when nothing matches.
	SearchCompanyByName(ctx context.Context, name string) (*models.CompanyDetails, error)
}

// TokenProvider supplies a fresh bearer token for authenticated calls.
type TokenProvider interface {
	EnsureAccessToken(ctx context.Context) (string, error)
}
