package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/senseirm/internal/domain"
)

// CampaignFilter captures campaign listing parameters.
type CampaignFilter struct {
	Status *domain.CampaignStatus
	Type   *domain.CampaignType
	Page
}

// CampaignRepository encapsulates campaign persistence.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	Update(ctx context.Context, campaign *domain.Campaign) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, filter CampaignFilter) ([]domain.Campaign, int64, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	// TransitionStatus moves the campaign from one status to another and fails with
	// pgx.ErrNoRows when the stored status no longer matches from.
	TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error
	// RecordDelivery adds batch counters and marks the campaign sent. Counters only
	// ever grow, and only a campaign in sending is updated.
	RecordDelivery(ctx context.Context, id string, recipients, success, failed int, sentAt time.Time) (*domain.Campaign, error)
	ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)
}

type campaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository instantiates repository.
func NewCampaignRepository(pool *pgxpool.Pool) CampaignRepository {
	return &campaignRepository{pool: pool}
}

const campaignColumns = `id, name, type, subject, content, status, scheduled_at, sent_at,
    recipient_count, success_count, fail_count, created_by, created_at, updated_at`

func (r *campaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	const query = `
        INSERT INTO campaigns (name, type, subject, content, status, scheduled_at, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		campaign.Name,
		campaign.Type,
		campaign.Subject,
		campaign.Content,
		campaign.Status,
		campaign.ScheduledAt,
		campaign.CreatedBy,
	).Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)
}

func (r *campaignRepository) Update(ctx context.Context, campaign *domain.Campaign) error {
	const query = `
        UPDATE campaigns SET name=$1, type=$2, subject=$3, content=$4, status=$5, scheduled_at=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		campaign.Name,
		campaign.Type,
		campaign.Subject,
		campaign.Content,
		campaign.Status,
		campaign.ScheduledAt,
		campaign.ID,
	).Scan(&campaign.UpdatedAt)
}

func (r *campaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	return scanCampaign(r.pool.QueryRow(ctx, query, id))
}

func (r *campaignRepository) List(ctx context.Context, filter CampaignFilter) ([]domain.Campaign, int64, error) {
	where := &whereBuilder{}
	if filter.Status != nil {
		where.add("status=$%d", *filter.Status)
	}
	if filter.Type != nil {
		where.add("type=$%d", *filter.Type)
	}
	limit, offset := filter.bounds()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns WHERE `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		campaignColumns, where.sql(), limit, offset)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	campaigns, err := scanCampaigns(rows)
	return campaigns, total, err
}

func (r *campaignRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *campaignRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns`).Scan(&n)
	return n, err
}

func (r *campaignRepository) TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error {
	const query = `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	cmd, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *campaignRepository) RecordDelivery(ctx context.Context, id string, recipients, success, failed int, sentAt time.Time) (*domain.Campaign, error) {
	query := `
        UPDATE campaigns SET
            recipient_count = recipient_count + $1,
            success_count = success_count + $2,
            fail_count = fail_count + $3,
            status = $4,
            sent_at = $5,
            updated_at = NOW()
        WHERE id=$6 AND status=$7
        RETURNING ` + campaignColumns
	return scanCampaign(r.pool.QueryRow(ctx, query,
		recipients, success, failed, domain.CampaignStatusSent, sentAt, id, domain.CampaignStatusSending))
}

func (r *campaignRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
        FROM campaigns
        WHERE status=$1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
        ORDER BY scheduled_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.CampaignStatusScheduled, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Type,
		&c.Subject,
		&c.Content,
		&c.Status,
		&c.ScheduledAt,
		&c.SentAt,
		&c.RecipientCount,
		&c.SuccessCount,
		&c.FailCount,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCampaigns(rows pgx.Rows) ([]domain.Campaign, error) {
	var result []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}
