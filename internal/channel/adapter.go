// Package channel contains the per-channel delivery adapters. Email sends
// synchronously against the provider; WhatsApp and SMS hand off to durable
// queues for a separate consumer.
package channel

import (
	"context"
	"errors"

	"github.com/example/campaign-dispatch/internal/campaign"
)

var (
	// ErrMissingContact means the recipient lacks the contact field the
	// channel needs. Per-recipient failure, never aborts the batch.
	ErrMissingContact = errors.New("missing contact info")
	// ErrProvider means the synchronous provider rejected the send.
	ErrProvider = errors.New("provider error")
	// ErrQueue means handing the message to the work queue failed.
	ErrQueue = errors.New("queue error")
)

// Receipt reports a successful hand-off. ProviderRef is set only when the
// transport assigns an id synchronously (email); for queued channels it stays
// empty until the consumer delivers.
type Receipt struct {
	ProviderRef string
}

// Adapter sends one rendered message to one customer. "Success" means
// accepted for delivery: for queued channels that is enqueue success, not
// proof the message ever reached the handset.
type Adapter interface {
	Send(ctx context.Context, cmp *campaign.Campaign, cust campaign.Customer, content string) (Receipt, error)
}
