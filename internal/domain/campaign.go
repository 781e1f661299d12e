package domain

import "time"

// CampaignType is the delivery channel of a campaign.
type CampaignType string

const (
	CampaignTypeEmail    CampaignType = "email"
	CampaignTypeWhatsApp CampaignType = "whatsapp"
)

// CampaignStatus enumerates lifecycle states for campaigns.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Valid reports whether t is a known channel.
func (t CampaignType) Valid() bool {
	return t == CampaignTypeEmail || t == CampaignTypeWhatsApp
}

// Valid reports whether s is a known status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending, CampaignStatusSent, CampaignStatusCancelled:
		return true
	}
	return false
}

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:     {CampaignStatusScheduled, CampaignStatusSending, CampaignStatusCancelled},
	CampaignStatusScheduled: {CampaignStatusSending, CampaignStatusCancelled},
	CampaignStatusSending:   {CampaignStatusSent},
}

// CanTransitionTo reports whether a campaign may move from s to next.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether content may still change.
func (s CampaignStatus) Editable() bool {
	return s == CampaignStatusDraft || s == CampaignStatusScheduled
}

// Campaign is a templated bulk communication sent to a set of clients.
type Campaign struct {
	ID             string
	Name           string
	Type           CampaignType
	Subject        string
	Content        string
	Status         CampaignStatus
	ScheduledAt    *time.Time
	SentAt         *time.Time
	RecipientCount int
	SuccessCount   int
	FailCount      int
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SendStatus is the outcome of one recipient delivery.
type SendStatus string

const (
	SendStatusSent   SendStatus = "sent"
	SendStatusFailed SendStatus = "failed"
)

// CampaignSendResult is the per-recipient outcome of a send batch. It is returned to
// the caller and only its aggregate is persisted.
type CampaignSendResult struct {
	ClientID   string     `json:"clientId"`
	Status     SendStatus `json:"status"`
	Email      string     `json:"email"`
	DeliveryID string     `json:"deliveryId,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// CountResults tallies sent and failed outcomes.
func CountResults(results []CampaignSendResult) (success, failed int) {
	for _, r := range results {
		if r.Status == SendStatusSent {
			success++
		} else {
			failed++
		}
	}
	return success, failed
}
