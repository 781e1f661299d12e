package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/senseirm/internal/domain"
)

// SettingsRepository persists the single system settings row.
type SettingsRepository interface {
	// Get returns the stored settings, or the defaults when none were saved yet.
	Get(ctx context.Context) (domain.SystemSettings, error)
	Save(ctx context.Context, settings *domain.SystemSettings) error
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository instantiates repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) Get(ctx context.Context) (domain.SystemSettings, error) {
	const query = `
        SELECT company_logo, company_slogan, primary_color, secondary_color, developer_logo,
               developer_website, developer_email, developer_phone, license_type, license_expiry, updated_at
        FROM system_settings WHERE id=1`
	var s domain.SystemSettings
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.CompanyLogo,
		&s.CompanySlogan,
		&s.PrimaryColor,
		&s.SecondaryColor,
		&s.DeveloperLogo,
		&s.DeveloperWebsite,
		&s.DeveloperEmail,
		&s.DeveloperPhone,
		&s.LicenseType,
		&s.LicenseExpiry,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	return s, err
}

func (r *settingsRepository) Save(ctx context.Context, s *domain.SystemSettings) error {
	const query = `
        INSERT INTO system_settings (id, company_logo, company_slogan, primary_color, secondary_color, developer_logo,
            developer_website, developer_email, developer_phone, license_type, license_expiry, updated_at)
        VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
        ON CONFLICT (id) DO UPDATE SET
            company_logo=EXCLUDED.company_logo,
            company_slogan=EXCLUDED.company_slogan,
            primary_color=EXCLUDED.primary_color,
            secondary_color=EXCLUDED.secondary_color,
            developer_logo=EXCLUDED.developer_logo,
            developer_website=EXCLUDED.developer_website,
            developer_email=EXCLUDED.developer_email,
            developer_phone=EXCLUDED.developer_phone,
            license_type=EXCLUDED.license_type,
            license_expiry=EXCLUDED.license_expiry,
            updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		s.CompanyLogo,
		s.CompanySlogan,
		s.PrimaryColor,
		s.SecondaryColor,
		s.DeveloperLogo,
		s.DeveloperWebsite,
		s.DeveloperEmail,
		s.DeveloperPhone,
		s.LicenseType,
		s.LicenseExpiry,
	).Scan(&s.UpdatedAt)
}
