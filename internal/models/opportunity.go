// Package models defines domain types for HubLink
package models

import "time"

// ForecastCategory is the qualitative pipeline bucket for an opportunity.
type ForecastCategory int16

const (
	ForecastOmitted  ForecastCategory = 0
	ForecastPipeline ForecastCategory = 1
	ForecastBestCase ForecastCategory = 2
	ForecastCommit   ForecastCategory = 3
	ForecastClosed   ForecastCategory = 4
)

// String returns the HubSpot token for the category.
func (f ForecastCategory) String() string {
	switch f {
	case ForecastPipeline:
		return "pipeline"
	case ForecastBestCase:
		return "bestcase"
	case ForecastCommit:
		return "commit"
	case ForecastClosed:
		return "closed"
	default:
		return "omitted"
	}
}

// Opportunity is a locally stored sales opportunity.
//
// HubSpotID is the opaque foreign key into HubSpot; it is set only after a
// successful pull from (or push to) the remote system. An opportunity with an
// empty HubSpotID has never been linked and is never auto-synced.
type Opportunity struct {
	ID               string           `json:"id" badgerhold:"key"`
	HubSpotID        string           `json:"hubspot_id" badgerhold:"index"`
	Name             string           `json:"name"`
	EstimatedValue   float64          `json:"estimated_value"`
	CloseDate        *time.Time       `json:"close_date,omitempty"`
	ForecastCategory ForecastCategory `json:"forecast_category"`
	LastModified     *time.Time       `json:"last_modified,omitempty"`
}
