package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/events"
	"github.com/spec-kit/senseirm/internal/mail"
	"github.com/spec-kit/senseirm/internal/repository"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

// CampaignService coordinates campaign workflows.
type CampaignService struct {
	campaigns  repository.CampaignRepository
	clients    repository.ClientRepository
	dispatcher *CampaignDispatcher
	events     events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
	retryDelay time.Duration
}

const recordDeliveryAttempts = 3

// CampaignDependencies bundles collaborators for the campaign service.
type CampaignDependencies struct {
	CampaignRepo repository.CampaignRepository
	ClientRepo   repository.ClientRepository
	Dispatcher   *CampaignDispatcher
	Events       events.Dispatcher
	Logger       *zap.Logger
}

// NewCampaignService builds the service.
func NewCampaignService(deps CampaignDependencies) *CampaignService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignService{
		campaigns:  deps.CampaignRepo,
		clients:    deps.ClientRepo,
		dispatcher: deps.Dispatcher,
		events:     deps.Events,
		logger:     logger,
		now:        time.Now,
		retryDelay: 200 * time.Millisecond,
	}
}

// CampaignListInput filters the campaign list.
type CampaignListInput struct {
	ListInput
	Status *domain.CampaignStatus
	Type   *domain.CampaignType
}

// CampaignPage is one page of campaigns.
type CampaignPage struct {
	Campaigns  []domain.Campaign
	Total      int64
	Page       int
	TotalPages int
}

// CampaignInput carries create and update fields. On update nil leaves a field
// unchanged, and ClearSchedule moves a scheduled campaign back to draft.
type CampaignInput struct {
	Name          *string
	Type          *domain.CampaignType
	Subject       *string
	Content       *string
	ScheduledAt   *time.Time
	ClearSchedule bool
}

// SendOutcome is the result of one send batch.
type SendOutcome struct {
	Campaign     *domain.Campaign
	Results      []domain.CampaignSendResult
	SuccessCount int
	FailCount    int
}

// List returns a page of campaigns.
func (s *CampaignService) List(ctx context.Context, in CampaignListInput) (*CampaignPage, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *in.Status})
	}
	if in.Type != nil && !in.Type.Valid() {
		return nil, apperrors.NewValidationError("invalid type", map[string]any{"type": *in.Type})
	}
	page, limit := in.normalize()
	campaigns, total, err := s.campaigns.List(ctx, repository.CampaignFilter{
		Status: in.Status,
		Type:   in.Type,
		Page:   in.repoPage(),
	})
	if err != nil {
		return nil, err
	}
	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}
	return &CampaignPage{Campaigns: campaigns, Total: total, Page: page, TotalPages: totalPages(total, limit)}, nil
}

// Get returns one campaign.
func (s *CampaignService) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("campaign", map[string]any{"id": id})
	}
	return campaign, err
}

// Create stores a draft, or a scheduled campaign when ScheduledAt is set.
func (s *CampaignService) Create(ctx context.Context, actor *domain.RequestIdentity, in CampaignInput) (*domain.Campaign, error) {
	campaign := &domain.Campaign{Status: domain.CampaignStatusDraft, CreatedBy: actorID(actor)}
	if err := s.applyInput(campaign, in); err != nil {
		return nil, err
	}
	if campaign.Name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if campaign.Type == "" {
		return nil, apperrors.NewValidationError("type is required", map[string]any{"field": "type"})
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}
	s.logger.Info("campaign created", zap.String("campaign_id", campaign.ID), zap.String("actor_id", campaign.CreatedBy))
	return campaign, nil
}

// Update edits a draft or scheduled campaign.
func (s *CampaignService) Update(ctx context.Context, id string, in CampaignInput) (*domain.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.Editable() {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("campaign in status %s cannot be edited", campaign.Status),
			map[string]any{"status": campaign.Status},
		)
	}
	if err := s.applyInput(campaign, in); err != nil {
		return nil, err
	}
	if campaign.Name == "" {
		return nil, apperrors.NewValidationError("name cannot be empty", map[string]any{"field": "name"})
	}
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Delete removes a campaign that is not being sent.
func (s *CampaignService) Delete(ctx context.Context, id string) error {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status == domain.CampaignStatusSending {
		return apperrors.NewValidationError("campaign is being sent", nil)
	}
	if err := s.campaigns.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("campaign", map[string]any{"id": id})
		}
		return err
	}
	return nil
}

// Duplicate copies content into a new draft with fresh counters.
func (s *CampaignService) Duplicate(ctx context.Context, actor *domain.RequestIdentity, id string) (*domain.Campaign, error) {
	source, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	copied := &domain.Campaign{
		Name:      source.Name + " (copy)",
		Type:      source.Type,
		Subject:   source.Subject,
		Content:   source.Content,
		Status:    domain.CampaignStatusDraft,
		CreatedBy: actorID(actor),
	}
	if err := s.campaigns.Create(ctx, copied); err != nil {
		return nil, err
	}
	return copied, nil
}

// Cancel stops a draft or scheduled campaign.
func (s *CampaignService) Cancel(ctx context.Context, actor *domain.RequestIdentity, id string) (*domain.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := campaign.Status
	if !previous.CanTransitionTo(domain.CampaignStatusCancelled) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("campaign in status %s cannot be cancelled", previous),
			map[string]any{"status": previous},
		)
	}
	if err := s.campaigns.TransitionStatus(ctx, id, previous, domain.CampaignStatusCancelled); err != nil {
		return nil, s.transitionErr(err)
	}
	campaign.Status = domain.CampaignStatusCancelled
	s.publish(ctx, events.New(events.EventCampaignCancelled, campaign.ID, actorID(actor), events.CampaignCancelledPayload{
		Name:           campaign.Name,
		PreviousStatus: previous,
	}))
	return campaign, nil
}

// Send delivers an email campaign to recipientIDs, in that order, or to every
// active client when recipientIDs is empty. Nothing is changed when the mail
// transport is unavailable.
func (s *CampaignService) Send(ctx context.Context, actor *domain.RequestIdentity, id string, recipientIDs []string) (*SendOutcome, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, actor, campaign, recipientIDs, false)
}

// SendDueScheduled sends every scheduled campaign whose time has come to all
// active clients. It returns how many campaigns were sent.
func (s *CampaignService) SendDueScheduled(ctx context.Context) (int, error) {
	if !s.dispatcher.Available() {
		return 0, mail.ErrTransportUnavailable
	}
	due, err := s.campaigns.ListDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range due {
		campaign := due[i]
		if _, err := s.send(ctx, nil, &campaign, nil, true); err != nil {
			if apperrors.IsCode(err, apperrors.CodeValidation) {
				s.logger.Warn("scheduled campaign skipped", zap.String("campaign_id", campaign.ID), zap.Error(err))
				continue
			}
			s.logger.Error("scheduled campaign failed", zap.String("campaign_id", campaign.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *CampaignService) send(ctx context.Context, actor *domain.RequestIdentity, campaign *domain.Campaign, recipientIDs []string, scheduled bool) (*SendOutcome, error) {
	if campaign.Type != domain.CampaignTypeEmail {
		return nil, apperrors.NewValidationError("only email campaigns can be sent", map[string]any{"type": campaign.Type})
	}
	previous := campaign.Status
	if !previous.CanTransitionTo(domain.CampaignStatusSending) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("campaign in status %s cannot be sent", previous),
			map[string]any{"status": previous},
		)
	}
	if strings.TrimSpace(campaign.Subject) == "" {
		return nil, apperrors.NewValidationError("campaign subject is required to send", map[string]any{"field": "subject"})
	}
	if !s.dispatcher.Available() {
		return nil, apperrors.NewTransportUnavailable(mail.ErrTransportUnavailable)
	}

	recipients, err := s.resolveRecipients(ctx, recipientIDs)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, apperrors.NewValidationError("no recipients to send to", nil)
	}

	// From here on the batch must finish and be recorded even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	if err := s.campaigns.TransitionStatus(ctx, campaign.ID, previous, domain.CampaignStatusSending); err != nil {
		return nil, s.transitionErr(err)
	}

	results, err := s.dispatcher.Send(ctx, campaign, recipients)
	if err != nil {
		if revertErr := s.campaigns.TransitionStatus(ctx, campaign.ID, domain.CampaignStatusSending, previous); revertErr != nil {
			s.logger.Error("unable to restore campaign status", zap.String("campaign_id", campaign.ID), zap.Error(revertErr))
		}
		if errors.Is(err, mail.ErrTransportUnavailable) {
			return nil, apperrors.NewTransportUnavailable(err)
		}
		return nil, err
	}

	success, failed := domain.CountResults(results)
	updated, err := s.recordDelivery(ctx, campaign.ID, len(recipients), success, failed)
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign sent",
		zap.String("campaign_id", campaign.ID),
		zap.String("actor_id", actorID(actor)),
		zap.Int("recipients", len(recipients)),
		zap.Int("success", success),
		zap.Int("failed", failed),
		zap.Bool("scheduled", scheduled))
	s.publish(ctx, events.New(events.EventCampaignSent, campaign.ID, actorID(actor), events.CampaignSentPayload{
		Name:         campaign.Name,
		Recipients:   len(recipients),
		SuccessCount: success,
		FailCount:    failed,
		Scheduled:    scheduled,
	}))

	return &SendOutcome{Campaign: updated, Results: results, SuccessCount: success, FailCount: failed}, nil
}

// recordDelivery stores the batch counters, retrying transient failures. When the
// counters cannot be stored the campaign is still moved to sent and the counts
// are logged for reconciliation.
func (s *CampaignService) recordDelivery(ctx context.Context, id string, recipients, success, failed int) (*domain.Campaign, error) {
	sentAt := s.now()
	var err error
	for attempt := 1; attempt <= recordDeliveryAttempts; attempt++ {
		var updated *domain.Campaign
		updated, err = s.campaigns.RecordDelivery(ctx, id, recipients, success, failed, sentAt)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			// An earlier attempt committed, or the campaign left sending.
			return s.Get(ctx, id)
		}
		s.logger.Warn("record campaign delivery failed",
			zap.String("campaign_id", id), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < recordDeliveryAttempts && s.retryDelay > 0 {
			time.Sleep(time.Duration(attempt) * s.retryDelay)
		}
	}

	s.logger.Error("campaign delivered but counters not recorded",
		zap.String("campaign_id", id),
		zap.Int("recipients", recipients),
		zap.Int("success", success),
		zap.Int("failed", failed),
		zap.Time("sent_at", sentAt),
		zap.Error(err))
	if transitionErr := s.campaigns.TransitionStatus(ctx, id, domain.CampaignStatusSending, domain.CampaignStatusSent); transitionErr != nil {
		s.logger.Error("unable to mark campaign sent", zap.String("campaign_id", id), zap.Error(transitionErr))
	}
	return nil, fmt.Errorf("record campaign delivery: %w", err)
}

// resolveRecipients loads clients in the order of ids, ignoring repeats. An
// unknown id fails the whole request.
func (s *CampaignService) resolveRecipients(ctx context.Context, ids []string) ([]domain.Client, error) {
	if len(ids) == 0 {
		return s.clients.ListActive(ctx)
	}

	ordered := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}

	found, err := s.clients.ListByIDs(ctx, ordered)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Client, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	recipients := make([]domain.Client, 0, len(ordered))
	var missing []string
	for _, id := range ordered {
		c, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		recipients = append(recipients, c)
	}
	if len(missing) > 0 {
		return nil, apperrors.NewNotFound("client", map[string]any{"missing": missing})
	}
	return recipients, nil
}

func (s *CampaignService) applyInput(campaign *domain.Campaign, in CampaignInput) error {
	if in.Name != nil {
		campaign.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return apperrors.NewValidationError("invalid type", map[string]any{"type": *in.Type})
		}
		campaign.Type = *in.Type
	}
	if in.Subject != nil {
		campaign.Subject = strings.TrimSpace(*in.Subject)
	}
	if in.Content != nil {
		campaign.Content = *in.Content
	}
	switch {
	case in.ScheduledAt != nil:
		at := in.ScheduledAt.UTC()
		campaign.ScheduledAt = &at
		campaign.Status = domain.CampaignStatusScheduled
	case in.ClearSchedule:
		campaign.ScheduledAt = nil
		campaign.Status = domain.CampaignStatusDraft
	}
	return nil
}

func (s *CampaignService) transitionErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewConflict("campaign status changed concurrently", nil)
	}
	return err
}

func (s *CampaignService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
