package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/mail"
	"github.com/spec-kit/senseirm/internal/observability"
)

// CampaignDispatcher delivers one campaign to an ordered recipient list.
//
// Recipients are processed sequentially, in input order, with exactly one
// transport call each. A failed delivery is recorded and the batch continues.
type CampaignDispatcher struct {
	transport mail.Transport
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewCampaignDispatcher builds a dispatcher. transport may be nil when no mail
// relay is configured; Send then fails with mail.ErrTransportUnavailable.
func NewCampaignDispatcher(transport mail.Transport, logger *zap.Logger, metrics *observability.Metrics) *CampaignDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignDispatcher{transport: transport, logger: logger, metrics: metrics}
}

// Available reports whether a transport is configured.
func (d *CampaignDispatcher) Available() bool {
	return d != nil && d.transport != nil
}

// Send returns one result per recipient, in the order given. The batch is
// detached from ctx cancellation: once started it runs over the whole list.
func (d *CampaignDispatcher) Send(ctx context.Context, campaign *domain.Campaign, recipients []domain.Client) ([]domain.CampaignSendResult, error) {
	if !d.Available() {
		return nil, mail.ErrTransportUnavailable
	}

	ctx = context.WithoutCancel(ctx)
	results := make([]domain.CampaignSendResult, 0, len(recipients))
	for _, recipient := range recipients {
		subject := Personalize(campaign.Subject, recipient)
		content := Personalize(campaign.Content, recipient)

		result := domain.CampaignSendResult{ClientID: recipient.ID, Email: recipient.Email}
		deliveryID, err := d.transport.Send(ctx, recipient.Email, subject, content)
		if err != nil {
			result.Status = domain.SendStatusFailed
			result.Error = err.Error()
			d.logger.Warn("campaign delivery failed",
				zap.String("campaign_id", campaign.ID),
				zap.String("client_id", recipient.ID),
				zap.Error(err))
		} else {
			result.Status = domain.SendStatusSent
			result.DeliveryID = deliveryID
			d.logger.Debug("campaign delivered",
				zap.String("campaign_id", campaign.ID),
				zap.String("client_id", recipient.ID),
				zap.String("delivery_id", deliveryID))
		}
		d.metrics.RecordDelivery(string(result.Status))
		results = append(results, result)
	}
	return results, nil
}
