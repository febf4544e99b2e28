package channel

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/campaign-dispatch/internal/campaign"
)

type recordingPublisher struct {
	messages []kafka.Message
	err      error
}

func (p *recordingPublisher) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msgs...)
	return nil
}

func testCampaign(ch campaign.Channel) *campaign.Campaign {
	return &campaign.Campaign{
		ID:           "c-1",
		Name:         "Weekend Special",
		Channel:      ch,
		RestaurantID: "r-1",
	}
}

func TestQueueAdapterRecipient(t *testing.T) {
	tests := []struct {
		name     string
		channel  campaign.Channel
		customer campaign.Customer
		wantTo   string
		wantErr  error
	}{
		{
			name:     "whatsapp prefers whatsapp number",
			channel:  campaign.ChannelWhatsApp,
			customer: campaign.Customer{WhatsApp: "+254700000001", Phone: "+254700000002"},
			wantTo:   "+254700000001",
		},
		{
			name:     "whatsapp falls back to phone",
			channel:  campaign.ChannelWhatsApp,
			customer: campaign.Customer{Phone: "+254700000002"},
			wantTo:   "+254700000002",
		},
		{
			name:     "whatsapp requires some number",
			channel:  campaign.ChannelWhatsApp,
			customer: campaign.Customer{Email: "a@x.com"},
			wantErr:  ErrMissingContact,
		},
		{
			name:     "sms requires phone",
			channel:  campaign.ChannelSMS,
			customer: campaign.Customer{WhatsApp: "+254700000001"},
			wantErr:  ErrMissingContact,
		},
		{
			name:     "sms uses phone",
			channel:  campaign.ChannelSMS,
			customer: campaign.Customer{Phone: "+254700000003"},
			wantTo:   "+254700000003",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			a := &QueueAdapter{Channel: tc.channel, Writer: pub}

			_, err := a.Send(context.Background(), testCampaign(tc.channel), tc.customer, "hello")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if len(pub.messages) != 0 {
					t.Fatalf("no message should be enqueued on validation failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var queued QueuedMessage
			if err := json.Unmarshal(pub.messages[0].Value, &queued); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if queued.To != tc.wantTo {
				t.Fatalf("queued to %q, want %q", queued.To, tc.wantTo)
			}
			if queued.Channel != tc.channel {
				t.Fatalf("queued channel %q, want %q", queued.Channel, tc.channel)
			}
		})
	}
}

func TestQueueAdapterDedupKeysDistinct(t *testing.T) {
	pub := &recordingPublisher{}
	clock := time.Now()
	a := &QueueAdapter{
		Channel: campaign.ChannelWhatsApp,
		Writer:  pub,
		Now: func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		},
	}

	cmp := testCampaign(campaign.ChannelWhatsApp)
	customers := []campaign.Customer{
		{ID: "cu-1", WhatsApp: "+254700000001"},
		{ID: "cu-2", WhatsApp: "+254700000002"},
		{ID: "cu-3", WhatsApp: "+254700000003"},
	}
	for _, cust := range customers {
		if _, err := a.Send(context.Background(), cmp, cust, "hi"); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	if len(pub.messages) != len(customers) {
		t.Fatalf("expected %d enqueues, got %d", len(customers), len(pub.messages))
	}
	seen := map[string]bool{}
	for _, msg := range pub.messages {
		if string(msg.Key) != cmp.ID {
			t.Fatalf("message key %q, want campaign id %q", msg.Key, cmp.ID)
		}
		var dedup string
		for _, h := range msg.Headers {
			if h.Key == "dedup-key" {
				dedup = string(h.Value)
			}
		}
		if dedup == "" {
			t.Fatal("missing dedup-key header")
		}
		if seen[dedup] {
			t.Fatalf("duplicate dedup key %q", dedup)
		}
		seen[dedup] = true
	}
}

func TestQueueAdapterEnqueueFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker unreachable")}
	a := &QueueAdapter{Channel: campaign.ChannelSMS, Writer: pub}

	_, err := a.Send(context.Background(), testCampaign(campaign.ChannelSMS), campaign.Customer{Phone: "+254700000001"}, "hi")
	if !errors.Is(err, ErrQueue) {
		t.Fatalf("expected ErrQueue, got %v", err)
	}
}
