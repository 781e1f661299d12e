package dto

import (
	"time"

	"github.com/spec-kit/senseirm/internal/domain"
)

// CampaignRequest is used for both create and update. Name and type are required
// on create. ClearSchedule moves a scheduled campaign back to draft.
type CampaignRequest struct {
	Name          *string              `json:"name" validate:"omitempty,max=255"`
	Type          *domain.CampaignType `json:"type" validate:"omitempty,oneof=email whatsapp"`
	Subject       *string              `json:"subject" validate:"omitempty,max=255"`
	Content       *string              `json:"content"`
	ScheduledAt   *time.Time           `json:"scheduledAt"`
	ClearSchedule bool                 `json:"clearSchedule"`
}

// SendCampaignRequest selects recipients. An empty list targets every active client.
type SendCampaignRequest struct {
	RecipientIDs []string `json:"recipientIds" validate:"omitempty,dive,uuid"`
}

// CampaignResponse is the API view of a campaign.
type CampaignResponse struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Type           domain.CampaignType   `json:"type"`
	Subject        string                `json:"subject"`
	Content        string                `json:"content"`
	Status         domain.CampaignStatus `json:"status"`
	ScheduledAt    *time.Time            `json:"scheduledAt"`
	SentAt         *time.Time            `json:"sentAt"`
	RecipientCount int                   `json:"recipientCount"`
	SuccessCount   int                   `json:"successCount"`
	FailCount      int                   `json:"failCount"`
	CreatedBy      string                `json:"createdBy"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// CampaignListResponse is one page of campaigns.
type CampaignListResponse struct {
	Campaigns      []CampaignResponse `json:"campaigns"`
	TotalPages     int                `json:"totalPages"`
	CurrentPage    int                `json:"currentPage"`
	TotalCampaigns int64              `json:"totalCampaigns"`
}

// SendCampaignResponse reports a finished send batch.
type SendCampaignResponse struct {
	Campaign     CampaignResponse            `json:"campaign"`
	Results      []domain.CampaignSendResult `json:"results"`
	SuccessCount int                         `json:"successCount"`
	FailCount    int                         `json:"failCount"`
}

// NewCampaignResponse maps a domain campaign.
func NewCampaignResponse(c *domain.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:             c.ID,
		Name:           c.Name,
		Type:           c.Type,
		Subject:        c.Subject,
		Content:        c.Content,
		Status:         c.Status,
		ScheduledAt:    c.ScheduledAt,
		SentAt:         c.SentAt,
		RecipientCount: c.RecipientCount,
		SuccessCount:   c.SuccessCount,
		FailCount:      c.FailCount,
		CreatedBy:      c.CreatedBy,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// NewCampaignResponses maps a slice of campaigns.
func NewCampaignResponses(campaigns []domain.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, 0, len(campaigns))
	for i := range campaigns {
		out = append(out, NewCampaignResponse(&campaigns[i]))
	}
	return out
}
