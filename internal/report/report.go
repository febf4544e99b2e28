// Package report aggregates campaign outcomes for the dashboard. It only
// reads what the dispatcher wrote; none of the dispatch path depends on it.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/campaign-dispatch/internal/campaign"
)

type Store interface {
	ListCompleted(ctx context.Context, restaurantID string, from, to time.Time) ([]campaign.Campaign, error)
}

// CampaignReport is the per-tenant rollup over a date range.
type CampaignReport struct {
	TotalCampaigns int              `json:"total_campaigns"`
	ByStatus       map[string]int   `json:"by_status"`
	TotalSent      int              `json:"total_sent"`
	TotalFailed    int              `json:"total_failed"`
	DeliveryRate   float64          `json:"delivery_rate"`
	Campaigns      []CampaignResult `json:"campaigns"`
}

type CampaignResult struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Channel      string  `json:"channel"`
	Status       string  `json:"status"`
	Sent         int     `json:"sent"`
	Failed       int     `json:"failed"`
	DeliveryRate float64 `json:"delivery_rate"`
}

type Aggregator struct {
	Store Store
}

func (a *Aggregator) CampaignsReport(ctx context.Context, restaurantID string, from, to time.Time) (*CampaignReport, error) {
	campaigns, err := a.Store.ListCompleted(ctx, restaurantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return Build(campaigns), nil
}

// Build computes the rollup from campaign rows. Pure so the math is testable
// without a database.
func Build(campaigns []campaign.Campaign) *CampaignReport {
	rep := &CampaignReport{
		TotalCampaigns: len(campaigns),
		ByStatus:       map[string]int{},
		Campaigns:      make([]CampaignResult, 0, len(campaigns)),
	}
	for _, c := range campaigns {
		rep.ByStatus[string(c.Status)]++
		rep.TotalSent += c.SentCount
		rep.TotalFailed += c.FailedCount
		rep.Campaigns = append(rep.Campaigns, CampaignResult{
			ID:           c.ID,
			Name:         c.Name,
			Channel:      string(c.Channel),
			Status:       string(c.Status),
			Sent:         c.SentCount,
			Failed:       c.FailedCount,
			DeliveryRate: rate(c.SentCount, c.FailedCount),
		})
	}
	rep.DeliveryRate = rate(rep.TotalSent, rep.TotalFailed)
	return rep
}

func rate(sent, failed int) float64 {
	total := sent + failed
	if total == 0 {
		return 0
	}
	return float64(sent) / float64(total)
}

const selectCompleted = `
SELECT id, name, channel, message, scheduled_at, customer_segment, status,
       sent_count, failed_count, started_at, completed_at, restaurant_id, created_by
FROM campaigns
WHERE restaurant_id = $1
  AND completed_at BETWEEN $2 AND $3
ORDER BY completed_at DESC
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ListCompleted(ctx context.Context, restaurantID string, from, to time.Time) ([]campaign.Campaign, error) {
	rows, err := s.pool.Query(ctx, selectCompleted, restaurantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("select completed campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []campaign.Campaign{}
	for rows.Next() {
		var c campaign.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Channel, &c.Message, &c.ScheduledAt, &c.Segment,
			&c.Status, &c.SentCount, &c.FailedCount, &c.StartedAt, &c.CompletedAt,
			&c.RestaurantID, &c.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}
