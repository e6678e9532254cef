package sync

import (
	"strconv"

	"github.com/salesdiver/hublink/internal/models"
)

// Push-direction payload builders. The push branch of reconciliation is not
// implemented (the intended conflict policy for simultaneous local and remote
// edits has never been specified), so nothing invokes these against the
// network yet; they define the wire shape a future push will use.

// makeDealUpdatePayload builds the HubSpot property map for pushing a local
// opportunity upstream.
func makeDealUpdatePayload(opp *models.Opportunity) map[string]string {
	payload := map[string]string{
		"amount":               strconv.FormatFloat(opp.EstimatedValue, 'f', -1, 64),
		"hs_forecast_category": ReverseMapForecastCategory(opp.ForecastCategory),
	}
	if opp.Name != "" {
		payload["dealname"] = opp.Name
	}
	if opp.CloseDate != nil {
		payload["closedate"] = strconv.FormatInt(opp.CloseDate.UnixMilli(), 10)
	}
	return payload
}

// makeCompanyUpdatePayload builds the HubSpot property map for pushing a
// local company upstream.
func makeCompanyUpdatePayload(company *models.Company) map[string]string {
	payload := map[string]string{}
	if company.Name != "" {
		payload["name"] = company.Name
	}
	if company.Address1 != "" {
		payload["address"] = company.Address1
	}
	if company.Address2 != "" {
		payload["address2"] = company.Address2
	}
	if company.City != "" {
		payload["city"] = company.City
	}
	if company.State != "" {
		payload["state"] = company.State
	}
	if company.PostalCode != "" {
		payload["zip"] = company.PostalCode
	}
	return payload
}
