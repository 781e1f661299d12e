package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/senseirm/internal/domain"
)

// ClientFilter captures client search parameters.
type ClientFilter struct {
	Search string
	Status *domain.ClientStatus
	Page
}

// ClientRepository encapsulates client persistence.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	Update(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	List(ctx context.Context, filter ClientFilter) ([]domain.Client, int64, error)
	// ListByIDs returns the clients matching ids in no particular order.
	ListByIDs(ctx context.Context, ids []string) ([]domain.Client, error)
	ListActive(ctx context.Context) ([]domain.Client, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (domain.ClientStats, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository instantiates repository.
func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

const clientColumns = `id, name, email, phone, company, status, notes, created_by, created_at, updated_at`

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	const query = `
        INSERT INTO clients (name, email, phone, company, status, notes, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		client.Name,
		client.Email,
		client.Phone,
		client.Company,
		client.Status,
		client.Notes,
		client.CreatedBy,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	return translateWriteErr(err)
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	const query = `
        UPDATE clients SET name=$1, email=$2, phone=$3, company=$4, status=$5, notes=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		client.Name,
		client.Email,
		client.Phone,
		client.Company,
		client.Status,
		client.Notes,
		client.ID,
	).Scan(&client.UpdatedAt)
	return translateWriteErr(err)
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id=$1`
	return scanClient(r.pool.QueryRow(ctx, query, id))
}

func (r *clientRepository) List(ctx context.Context, filter ClientFilter) ([]domain.Client, int64, error) {
	where := &whereBuilder{}
	if filter.Status != nil {
		where.add("status=$%d", *filter.Status)
	}
	where.addSearch(filter.Search, "name", "email", "company")
	limit, offset := filter.bounds()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM clients WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		clientColumns, where.sql(), limit, offset)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	clients, err := scanClients(rows)
	return clients, total, err
}

func (r *clientRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = ANY($1::uuid[])`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClients(rows)
}

func (r *clientRepository) ListActive(ctx context.Context) ([]domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE status=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.ClientStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClients(rows)
}

func (r *clientRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *clientRepository) Stats(ctx context.Context) (domain.ClientStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='active'),
               COUNT(*) FILTER (WHERE status='inactive'),
               COUNT(*) FILTER (WHERE status='prospect')
        FROM clients`
	var stats domain.ClientStats
	err := r.pool.QueryRow(ctx, query).Scan(&stats.Total, &stats.Active, &stats.Inactive, &stats.Prospect)
	return stats, err
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	var client domain.Client
	if err := row.Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.Company,
		&client.Status,
		&client.Notes,
		&client.CreatedBy,
		&client.CreatedAt,
		&client.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &client, nil
}

func scanClients(rows pgx.Rows) ([]domain.Client, error) {
	var result []domain.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *client)
	}
	return result, rows.Err()
}
