package models

import "time"

// BrandingRecord holds the logo assets for one ticker. Unlike reference
// data it is replaced wholesale on refresh; there is no partial-merge
// requirement for branding.
type BrandingRecord struct {
	Symbol      string    `json:"symbol"`
	CompanyName string    `json:"company_name,omitempty"`
	Exchange    string    `json:"exchange,omitempty"`
	IconURL     string    `json:"icon_url,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}
