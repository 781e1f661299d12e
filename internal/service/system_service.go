package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/cache"
	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/media"
	"github.com/spec-kit/senseirm/internal/repository"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// SettingsCache is the subset of the Redis settings cache used here.
type SettingsCache interface {
	Get(ctx context.Context) (domain.SystemSettings, error)
	Set(ctx context.Context, settings domain.SystemSettings) error
	Invalidate(ctx context.Context) error
}

// ObjectStore stores uploaded files and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// SystemService manages branding settings and dashboard totals.
type SystemService struct {
	settings       repository.SettingsRepository
	users          repository.UserRepository
	clients        repository.ClientRepository
	campaigns      repository.CampaignRepository
	tasks          repository.TaskRepository
	cache          SettingsCache
	store          ObjectStore
	maxUploadBytes int64
	logger         *zap.Logger
}

// SystemDependencies bundles collaborators for the system service. Cache and Store
// are optional.
type SystemDependencies struct {
	SettingsRepo   repository.SettingsRepository
	UserRepo       repository.UserRepository
	ClientRepo     repository.ClientRepository
	CampaignRepo   repository.CampaignRepository
	TaskRepo       repository.TaskRepository
	Cache          SettingsCache
	Store          ObjectStore
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewSystemService builds the service.
func NewSystemService(deps SystemDependencies) *SystemService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	return &SystemService{
		settings:       deps.SettingsRepo,
		users:          deps.UserRepo,
		clients:        deps.ClientRepo,
		campaigns:      deps.CampaignRepo,
		tasks:          deps.TaskRepo,
		cache:          deps.Cache,
		store:          deps.Store,
		maxUploadBytes: maxUpload,
		logger:         logger,
	}
}

// SettingsInput is a partial settings update.
type SettingsInput struct {
	CompanySlogan    *string
	PrimaryColor     *string
	SecondaryColor   *string
	DeveloperWebsite *string
	DeveloperEmail   *string
	DeveloperPhone   *string
	LicenseType      *string
	LicenseExpiry    *time.Time
	CompanyLogo      *string
	DeveloperLogo    *string
}

// LogoTarget selects which logo an upload replaces.
type LogoTarget string

const (
	LogoTargetCompany   LogoTarget = "company"
	LogoTargetDeveloper LogoTarget = "developer"
)

// LogoUpload is a logo file received from a multipart form.
type LogoUpload struct {
	Target      LogoTarget
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// LogoResult reports where an uploaded logo lives.
type LogoResult struct {
	URL      string                `json:"url"`
	Target   LogoTarget            `json:"target"`
	Settings domain.SystemSettings `json:"settings"`
}

// Settings returns the stored settings. Anonymous callers only see the public subset.
func (s *SystemService) Settings(ctx context.Context, identity *domain.RequestIdentity) (domain.SystemSettings, error) {
	settings, err := s.load(ctx)
	if err != nil {
		return domain.SystemSettings{}, err
	}
	if identity == nil {
		return settings.Public(), nil
	}
	return settings, nil
}

// UpdateSettings applies a partial update and invalidates the cache.
func (s *SystemService) UpdateSettings(ctx context.Context, actor *domain.RequestIdentity, in SettingsInput) (domain.SystemSettings, error) {
	for field, value := range map[string]*string{"primaryColor": in.PrimaryColor, "secondaryColor": in.SecondaryColor} {
		if value != nil && !hexColor.MatchString(*value) {
			return domain.SystemSettings{}, apperrors.NewValidationError("color must use the #RRGGBB format", map[string]any{"field": field})
		}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.SystemSettings{}, err
	}
	applySettingsInput(&settings, in)
	if err := s.save(ctx, &settings); err != nil {
		return domain.SystemSettings{}, err
	}
	s.logger.Info("system settings updated", zap.String("user_id", actorID(actor)))
	return settings, nil
}

// UploadLogo validates an image, stores it and records its URL in the settings.
func (s *SystemService) UploadLogo(ctx context.Context, actor *domain.RequestIdentity, in LogoUpload) (*LogoResult, error) {
	if in.Target == "" {
		in.Target = LogoTargetCompany
	}
	if in.Target != LogoTargetCompany && in.Target != LogoTargetDeveloper {
		return nil, apperrors.NewValidationError("target must be company or developer", map[string]any{"target": in.Target})
	}
	if in.Body == nil || in.Size == 0 {
		return nil, apperrors.NewValidationError("logo file is required", map[string]any{"field": "logo"})
	}
	if in.Size > s.maxUploadBytes {
		return nil, apperrors.NewValidationError("logo exceeds the upload size limit", map[string]any{"maxBytes": s.maxUploadBytes})
	}
	if s.store == nil {
		return nil, apperrors.NewServiceUnavailable("object storage not configured", nil)
	}

	detected, head, err := media.Detect(in.Body)
	if errors.Is(err, media.ErrUnsupportedType) {
		return nil, apperrors.NewValidationError("logo must be a png, jpeg, svg or webp image", map[string]any{"filename": in.Filename})
	}
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}

	key := fmt.Sprintf("logos/%s/%s%s", in.Target, uuid.NewString(), detected.Extension)
	body := io.MultiReader(bytes.NewReader(head), in.Body)
	url, err := s.store.Put(ctx, key, body, in.Size, detected.MIME)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if in.Target == LogoTargetDeveloper {
		settings.DeveloperLogo = url
	} else {
		settings.CompanyLogo = url
	}
	if err := s.save(ctx, &settings); err != nil {
		return nil, err
	}

	s.logger.Info("logo uploaded",
		zap.String("user_id", actorID(actor)),
		zap.String("target", string(in.Target)),
		zap.String("key", key),
	)
	return &LogoResult{URL: url, Target: in.Target, Settings: settings}, nil
}

// Stats returns entity totals for the dashboard.
func (s *SystemService) Stats(ctx context.Context) (domain.SystemStats, error) {
	var stats domain.SystemStats
	var err error
	if stats.Users, err = s.users.Count(ctx); err != nil {
		return stats, err
	}
	clientStats, err := s.clients.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.Clients = clientStats.Total
	if stats.Campaigns, err = s.campaigns.Count(ctx); err != nil {
		return stats, err
	}
	if stats.Tasks, err = s.tasks.Count(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *SystemService) load(ctx context.Context) (domain.SystemSettings, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("settings cache read failed", zap.Error(err))
		}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.SystemSettings{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, settings); err != nil {
			s.logger.Warn("settings cache write failed", zap.Error(err))
		}
	}
	return settings, nil
}

func (s *SystemService) save(ctx context.Context, settings *domain.SystemSettings) error {
	if err := s.settings.Save(ctx, settings); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("settings cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

func applySettingsInput(settings *domain.SystemSettings, in SettingsInput) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&settings.CompanySlogan, in.CompanySlogan)
	set(&settings.DeveloperWebsite, in.DeveloperWebsite)
	set(&settings.DeveloperEmail, in.DeveloperEmail)
	set(&settings.DeveloperPhone, in.DeveloperPhone)
	set(&settings.LicenseType, in.LicenseType)
	set(&settings.CompanyLogo, in.CompanyLogo)
	set(&settings.DeveloperLogo, in.DeveloperLogo)
	if in.PrimaryColor != nil {
		settings.PrimaryColor = strings.ToUpper(*in.PrimaryColor)
	}
	if in.SecondaryColor != nil {
		settings.SecondaryColor = strings.ToUpper(*in.SecondaryColor)
	}
	if in.LicenseExpiry != nil {
		expiry := in.LicenseExpiry.UTC()
		settings.LicenseExpiry = &expiry
	}
}
