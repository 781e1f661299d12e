package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/senseirm/internal/api/dto"
	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/service"
)

// CampaignsHandler exposes campaign management and sending.
type CampaignsHandler struct {
	campaigns *service.CampaignService
}

// NewCampaignsHandler constructs handler.
func NewCampaignsHandler(campaigns *service.CampaignService) *CampaignsHandler {
	return &CampaignsHandler{campaigns: campaigns}
}

// List handles GET /api/campaigns.
func (h *CampaignsHandler) List(c *fiber.Ctx) error {
	page, limit := queryPage(c)
	result, err := h.campaigns.List(c.UserContext(), service.CampaignListInput{
		ListInput: service.ListInput{Page: page, Limit: limit, Search: c.Query("search")},
		Status:    queryEnum[domain.CampaignStatus](c, "status"),
		Type:      queryEnum[domain.CampaignType](c, "type"),
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.CampaignListResponse{
		Campaigns:      dto.NewCampaignResponses(result.Campaigns),
		TotalPages:     result.TotalPages,
		CurrentPage:    result.Page,
		TotalCampaigns: result.Total,
	})
}

// Get handles GET /api/campaigns/:id.
func (h *CampaignsHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "campaign")
	if err != nil {
		return err
	}
	campaign, err := h.campaigns.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewCampaignResponse(campaign))
}

// Create handles POST /api/campaigns.
func (h *CampaignsHandler) Create(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CampaignRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	campaign, err := h.campaigns.Create(c.UserContext(), identity, campaignInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewCampaignResponse(campaign))
}

// Update handles PUT /api/campaigns/:id.
func (h *CampaignsHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "campaign")
	if err != nil {
		return err
	}
	var req dto.CampaignRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	campaign, err := h.campaigns.Update(c.UserContext(), id, campaignInput(req))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewCampaignResponse(campaign))
}

// Delete handles DELETE /api/campaigns/:id.
func (h *CampaignsHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "campaign")
	if err != nil {
		return err
	}
	if err := h.campaigns.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "campaign deleted"})
}

// Duplicate handles POST /api/campaigns/:id/duplicate.
func (h *CampaignsHandler) Duplicate(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "campaign")
	if err != nil {
		return err
	}
	campaign, err := h.campaigns.Duplicate(c.UserContext(), identity, id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewCampaignResponse(campaign))
}

// Cancel handles POST /api/campaigns/:id/cancel.
func (h *CampaignsHandler) Cancel(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "campaign")
	if err != nil {
		return err
	}
	campaign, err := h.campaigns.Cancel(c.UserContext(), identity, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewCampaignResponse(campaign))
}

// Send handles POST /api/campaigns/:id/send. The batch runs to completion before
// the response is written.
func (h *CampaignsHandler) Send(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "campaign")
	if err != nil {
		return err
	}
	var req dto.SendCampaignRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	outcome, err := h.campaigns.Send(c.UserContext(), identity, id, req.RecipientIDs)
	if err != nil {
		return err
	}
	results := outcome.Results
	if results == nil {
		results = []domain.CampaignSendResult{}
	}
	return c.JSON(dto.SendCampaignResponse{
		Campaign:     dto.NewCampaignResponse(outcome.Campaign),
		Results:      results,
		SuccessCount: outcome.SuccessCount,
		FailCount:    outcome.FailCount,
	})
}

func campaignInput(req dto.CampaignRequest) service.CampaignInput {
	return service.CampaignInput{
		Name:          req.Name,
		Type:          req.Type,
		Subject:       req.Subject,
		Content:       req.Content,
		ScheduledAt:   req.ScheduledAt,
		ClearSchedule: req.ClearSchedule,
	}
}
