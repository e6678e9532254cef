package models

import "time"

// Company type codes mirror the CRM's companyType vocabulary.
const (
	CompanyTypeUnknown  int16 = 0
	CompanyTypeCustomer int16 = 1
	CompanyTypeProspect int16 = 3
)

// Company is a locally stored company record.
type Company struct {
	ID           string     `json:"id" badgerhold:"key"`
	HubSpotID    string     `json:"hubspot_id" badgerhold:"index"`
	Name         string     `json:"name"`
	Address1     string     `json:"address1"`
	Address2     string     `json:"address2"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	PostalCode   string     `json:"postal_code"`
	CompanyType  int16      `json:"company_type"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}
