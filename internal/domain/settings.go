package domain

import "time"

// Default brand colors applied when no settings row exists yet.
const (
	DefaultPrimaryColor   = "#3B82F6"
	DefaultSecondaryColor = "#1E40AF"
)

// SystemSettings holds the single branding and licensing record.
type SystemSettings struct {
	CompanyLogo      string     `json:"companyLogo"`
	CompanySlogan    string     `json:"companySlogan"`
	PrimaryColor     string     `json:"primaryColor"`
	SecondaryColor   string     `json:"secondaryColor"`
	DeveloperLogo    string     `json:"developerLogo"`
	DeveloperWebsite string     `json:"developerWebsite"`
	DeveloperEmail   string     `json:"developerEmail"`
	DeveloperPhone   string     `json:"developerPhone"`
	LicenseType      string     `json:"licenseType"`
	LicenseExpiry    *time.Time `json:"licenseExpiry"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// DefaultSettings returns the settings used before an administrator saves any.
func DefaultSettings() SystemSettings {
	return SystemSettings{
		PrimaryColor:   DefaultPrimaryColor,
		SecondaryColor: DefaultSecondaryColor,
	}
}

// Public returns the branding subset shown to anonymous callers.
func (s SystemSettings) Public() SystemSettings {
	s.LicenseType = ""
	s.LicenseExpiry = nil
	return s
}

// SystemStats aggregates entity totals for the dashboard.
type SystemStats struct {
	Users     int64 `json:"users"`
	Clients   int64 `json:"clients"`
	Campaigns int64 `json:"campaigns"`
	Tasks     int64 `json:"tasks"`
}
