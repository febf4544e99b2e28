package campaign

import (
	"context"
	"errors"
	"time"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// Valid reports whether the channel is one the dispatcher can route.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp, ChannelSMS:
		return true
	}
	return false
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Delivery record states. Dispatch writes sent/failed; the queue workers and
// the provider webhook refine sent into delivered/bounced asynchronously.
const (
	DeliverySent      = "sent"
	DeliveryFailed    = "failed"
	DeliveryDelivered = "delivered"
	DeliveryBounced   = "bounced"
)

var (
	// ErrNotFound is returned when a campaign id resolves to nothing.
	ErrNotFound = errors.New("campaign not found")
	// ErrInvalidState is returned when a lifecycle transition is requested
	// from a status that does not allow it.
	ErrInvalidState = errors.New("campaign is not in a dispatchable state")
)

type Campaign struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Channel      Channel    `json:"channel"`
	Message      string     `json:"message"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	Segment      []string   `json:"customer_segment"`
	Status       Status     `json:"status"`
	SentCount    int        `json:"sent_count"`
	FailedCount  int        `json:"failed_count"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RestaurantID string     `json:"restaurant_id"`
	CreatedBy    string     `json:"created_by"`
}

type Customer struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	WhatsApp     string   `json:"whatsapp,omitempty"`
	Tags         []string `json:"tags"`
	RestaurantID string   `json:"restaurant_id"`
}

// HasAnyTag reports whether the customer's tag set overlaps the segment.
// Matching any single tag qualifies; an empty segment matches nobody.
func (c Customer) HasAnyTag(segment []string) bool {
	for _, want := range segment {
		for _, have := range c.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

type DeliveryRecord struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	CustomerID   string    `json:"customer_id"`
	Channel      Channel   `json:"channel"`
	Content      string    `json:"content"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	ProviderRef  string    `json:"provider_ref,omitempty"`
	SentAt       time.Time `json:"sent_at"`
	RestaurantID string    `json:"restaurant_id"`
}

type Store interface {
	GetByID(ctx context.Context, id string) (*Campaign, error)
	// MarkSending transitions the campaign to sending and stamps started_at.
	MarkSending(ctx context.Context, id string, startedAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	// Complete records the terminal status, counters and completion time.
	Complete(ctx context.Context, id string, status Status, sent, failed int, completedAt time.Time) error
}

type CustomerStore interface {
	// ListBySegment returns the tenant's customers whose tags overlap the
	// segment. An empty segment selects nobody; use ListAll to select all.
	ListBySegment(ctx context.Context, restaurantID string, segment []string) ([]Customer, error)
	ListAll(ctx context.Context, restaurantID string) ([]Customer, error)
}

type DeliveryStore interface {
	// Append writes one delivery attempt. The ledger is append-only: no
	// dedup lookup happens here.
	Append(ctx context.Context, rec DeliveryRecord) error
	// MarkOutcome refines a record's status once the async consumer learns
	// the real delivery result for a (campaign, customer) pair.
	MarkOutcome(ctx context.Context, campaignID, customerID, status, providerRef, detail string) error
	// UpdateByProviderRef applies a provider webhook event to the record
	// carrying that provider reference.
	UpdateByProviderRef(ctx context.Context, providerRef, status string) error
	CountByCampaign(ctx context.Context, campaignID string) (map[string]int, error)
}
