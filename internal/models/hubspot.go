package models

import "time"

// DealPayload is a deal as fetched from HubSpot. Fields may appear at the top
// level or nested under a "properties" sub-map, and either may hold a bare
// scalar or a {"value": ...} wrapper, so the payload stays untyped and is read
// through the ordered-fallback accessors in the sync package.
type DealPayload map[string]any

// DealSummary is the minimal deal representation returned by list/search.
type DealSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CompanyDetails is a company record as fetched from HubSpot.
type CompanyDetails struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Address1       string `json:"address1"`
	Address2       string `json:"address2"`
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
	LifecycleStage string `json:"lifecycle_stage"`
}

// TokenResponse is the HubSpot token endpoint's JSON response for both the
// authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenRecord is the persisted OAuth token state. It is owned exclusively by
// the token store; no other component persists it.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// HasAccessToken reports whether an access token is present.
func (t *TokenRecord) HasAccessToken() bool {
	return t != nil && t.AccessToken != ""
}

// HasRefreshToken reports whether a refresh token is present.
func (t *TokenRecord) HasRefreshToken() bool {
	return t != nil && t.RefreshToken != ""
}
