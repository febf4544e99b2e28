package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectCampaign = `
SELECT id, name, channel, message, scheduled_at, customer_segment, status,
       sent_count, failed_count, started_at, completed_at, restaurant_id, created_by
FROM campaigns
WHERE id = $1
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Campaign, error) {
	row := s.pool.QueryRow(ctx, selectCampaign, id)

	var c Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Channel, &c.Message, &c.ScheduledAt, &c.Segment,
		&c.Status, &c.SentCount, &c.FailedCount, &c.StartedAt, &c.CompletedAt,
		&c.RestaurantID, &c.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select campaign: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) MarkSending(ctx context.Context, id string, startedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1, started_at = $2 WHERE id = $3`,
		StatusSending, startedAt, id)
	if err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Complete(ctx context.Context, id string, status Status, sent, failed int, completedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE campaigns
		 SET status = $1, sent_count = $2, failed_count = $3, completed_at = $4
		 WHERE id = $5`,
		status, sent, failed, completedAt, id)
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}
	return nil
}

const selectCustomers = `
SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(whatsapp, ''),
       tags, restaurant_id
FROM customers
WHERE restaurant_id = $1
`

type PostgresCustomerStore struct {
	pool *pgxpool.Pool
}

func NewPostgresCustomerStore(pool *pgxpool.Pool) *PostgresCustomerStore {
	return &PostgresCustomerStore{pool: pool}
}

func (s *PostgresCustomerStore) ListBySegment(ctx context.Context, restaurantID string, segment []string) ([]Customer, error) {
	if restaurantID == "" {
		return nil, errors.New("restaurant id is required")
	}
	// An empty segment selects nobody. tags && '{}' is always false in
	// Postgres, but we skip the round trip entirely.
	if len(segment) == 0 {
		return []Customer{}, nil
	}
	rows, err := s.pool.Query(ctx, selectCustomers+` AND tags && $2`, restaurantID, segment)
	if err != nil {
		return nil, fmt.Errorf("select customers by segment: %w", err)
	}
	defer rows.Close()
	return scanCustomers(rows)
}

func (s *PostgresCustomerStore) ListAll(ctx context.Context, restaurantID string) ([]Customer, error) {
	if restaurantID == "" {
		return nil, errors.New("restaurant id is required")
	}
	rows, err := s.pool.Query(ctx, selectCustomers, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()
	return scanCustomers(rows)
}

func scanCustomers(rows pgx.Rows) ([]Customer, error) {
	customers := []Customer{}
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.WhatsApp, &c.Tags, &c.RestaurantID); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

const insertDelivery = `
INSERT INTO delivery_records (
	id, campaign_id, customer_id, channel, content, status, error, provider_ref,
	sent_at, restaurant_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`

type PostgresDeliveryStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDeliveryStore(pool *pgxpool.Pool) *PostgresDeliveryStore {
	return &PostgresDeliveryStore{pool: pool}
}

func (s *PostgresDeliveryStore) Append(ctx context.Context, rec DeliveryRecord) error {
	_, err := s.pool.Exec(ctx, insertDelivery,
		rec.ID, rec.CampaignID, rec.CustomerID, string(rec.Channel), rec.Content,
		rec.Status, rec.Error, rec.ProviderRef, rec.SentAt, rec.RestaurantID)
	if err != nil {
		return fmt.Errorf("append delivery record: %w", err)
	}
	return nil
}

func (s *PostgresDeliveryStore) MarkOutcome(ctx context.Context, campaignID, customerID, status, providerRef, detail string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE delivery_records
		 SET status = $1, provider_ref = $2, error = $3
		 WHERE campaign_id = $4 AND customer_id = $5`,
		status, providerRef, detail, campaignID, customerID)
	if err != nil {
		return fmt.Errorf("mark delivery outcome: %w", err)
	}
	return nil
}

func (s *PostgresDeliveryStore) UpdateByProviderRef(ctx context.Context, providerRef, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE delivery_records SET status = $1 WHERE provider_ref = $2`,
		status, providerRef)
	if err != nil {
		return fmt.Errorf("update delivery by provider ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no delivery record for provider ref %q", providerRef)
	}
	return nil
}

func (s *PostgresDeliveryStore) CountByCampaign(ctx context.Context, campaignID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM delivery_records WHERE campaign_id = $1 GROUP BY status`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan delivery count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
