package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/campaign-dispatch/internal/campaign"
)

// QueuedMessage is the payload handed to the queue consumers.
type QueuedMessage struct {
	CampaignID string           `json:"campaign_id"`
	CustomerID string           `json:"customer_id"`
	To         string           `json:"to"`
	Message    string           `json:"message"`
	Channel    campaign.Channel `json:"channel"`
}

// Publisher is the slice of kafka.Writer the adapter needs; tests swap in a
// recording fake.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// QueueAdapter enqueues messages for asynchronous delivery. One instance per
// queued channel (whatsapp, sms); they differ only in which contact field they
// require and which topic their writer targets.
type QueueAdapter struct {
	Channel campaign.Channel
	Writer  Publisher
	// now is swappable for deterministic dedup keys in tests.
	Now func() time.Time
}

func (a *QueueAdapter) Send(ctx context.Context, cmp *campaign.Campaign, cust campaign.Customer, content string) (Receipt, error) {
	to, err := a.recipient(cust)
	if err != nil {
		return Receipt{}, err
	}

	payload, err := json.Marshal(QueuedMessage{
		CampaignID: cmp.ID,
		CustomerID: cust.ID,
		To:         to,
		Message:    content,
		Channel:    a.Channel,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: marshal payload: %v", ErrQueue, err)
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	// Composite dedup key limits duplicate delivery under the queue's
	// at-least-once semantics. The campaign id keys partitioning so one
	// campaign's messages stay ordered per partition.
	dedup := fmt.Sprintf("%s-%s-%d", cmp.ID, cust.ID, now().UnixNano())

	msg := kafka.Message{
		Key:   []byte(cmp.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "dedup-key", Value: []byte(dedup)},
		},
	}
	if err := a.Writer.WriteMessages(ctx, msg); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrQueue, err)
	}
	return Receipt{}, nil
}

func (a *QueueAdapter) recipient(cust campaign.Customer) (string, error) {
	switch a.Channel {
	case campaign.ChannelWhatsApp:
		if cust.WhatsApp != "" {
			return cust.WhatsApp, nil
		}
		if cust.Phone != "" {
			return cust.Phone, nil
		}
		return "", fmt.Errorf("%w: customer has no whatsapp or phone number", ErrMissingContact)
	case campaign.ChannelSMS:
		if cust.Phone == "" {
			return "", fmt.Errorf("%w: customer has no phone number", ErrMissingContact)
		}
		return cust.Phone, nil
	default:
		return "", fmt.Errorf("%w: unsupported queue channel %q", ErrQueue, a.Channel)
	}
}
