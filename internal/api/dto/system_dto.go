package dto

import "time"

// SettingsRequest is a partial settings update. Colors use the #RRGGBB format.
type SettingsRequest struct {
	CompanyLogo      *string    `json:"companyLogo" validate:"omitempty,max=2048"`
	CompanySlogan    *string    `json:"companySlogan" validate:"omitempty,max=255"`
	PrimaryColor     *string    `json:"primaryColor" validate:"omitempty,hexcolor,len=7"`
	SecondaryColor   *string    `json:"secondaryColor" validate:"omitempty,hexcolor,len=7"`
	DeveloperLogo    *string    `json:"developerLogo" validate:"omitempty,max=2048"`
	DeveloperWebsite *string    `json:"developerWebsite" validate:"omitempty,max=255"`
	DeveloperEmail   *string    `json:"developerEmail" validate:"omitempty,email"`
	DeveloperPhone   *string    `json:"developerPhone" validate:"omitempty,max=50"`
	LicenseType      *string    `json:"licenseType" validate:"omitempty,max=50"`
	LicenseExpiry    *time.Time `json:"licenseExpiry"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}
