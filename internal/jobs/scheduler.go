package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/mail"
)

// CampaignSender sends scheduled campaigns whose time has come.
type CampaignSender interface {
	SendDueScheduled(ctx context.Context) (int, error)
}

// Scheduler runs periodic background jobs.
type Scheduler struct {
	cron    *cron.Cron
	sender  CampaignSender
	logger  *zap.Logger
	timeout time.Duration
}

// NewScheduler builds a scheduler using six-field cron expressions (with seconds).
// A run that is still in progress when the next tick fires is skipped.
func NewScheduler(sender CampaignSender, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, sender: sender, logger: logger, timeout: 5 * time.Minute}
}

// Start registers the campaign job under spec and starts the cron loop.
func (s *Scheduler) Start(campaignSpec string) error {
	if s.sender == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(campaignSpec, s.sendDueCampaigns); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("campaign_spec", campaignSpec))
	return nil
}

// Stop halts the scheduler and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) sendDueCampaigns() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	sent, err := s.sender.SendDueScheduled(ctx)
	switch {
	case errors.Is(err, mail.ErrTransportUnavailable):
		s.logger.Debug("skipping scheduled campaigns, mail transport not configured")
	case err != nil:
		s.logger.Error("scheduled campaign run failed", zap.Error(err))
	case sent > 0:
		s.logger.Info("scheduled campaigns sent", zap.Int("count", sent))
	}
}

type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
