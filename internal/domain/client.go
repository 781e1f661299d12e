package domain

import "time"

// ClientStatus tracks where a client sits in the relationship lifecycle.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
	ClientStatusProspect ClientStatus = "prospect"
)

// Valid reports whether s is a known status.
func (s ClientStatus) Valid() bool {
	return s == ClientStatusActive || s == ClientStatusInactive || s == ClientStatusProspect
}

// Client is a customer record and the recipient of campaigns.
type Client struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Company   string
	Status    ClientStatus
	Notes     string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientStats aggregates client counts per status.
type ClientStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
	Prospect int64 `json:"prospect"`
}
