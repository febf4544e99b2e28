// Package dispatch drives a campaign send end to end: audience resolution,
// per-recipient fan-out through the channel adapters, ledger writes and the
// final status transition.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/campaign-dispatch/internal/campaign"
	"github.com/example/campaign-dispatch/internal/channel"
	"github.com/example/campaign-dispatch/internal/render"
)

var recipientCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dispatch_recipients_total",
	Help: "Recipients attempted per channel and outcome",
}, []string{"channel", "outcome"})

type Dispatcher struct {
	Campaigns campaign.Store
	Customers campaign.CustomerStore
	Ledger    campaign.DeliveryStore
	Adapters  map[campaign.Channel]channel.Adapter
	// Workers bounds in-flight recipient sends within one campaign.
	Workers int
	Logger  zerolog.Logger
}

// Result aggregates one completed dispatch. Errors holds one human-readable
// string per failed recipient so the caller can retry by resubmission.
type Result struct {
	Total  int      `json:"total"`
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors"`
}

// Send runs the full dispatch pipeline for one campaign. Failures before the
// sending transition leave the campaign untouched; per-recipient failures are
// recorded and never abort siblings.
func (d *Dispatcher) Send(ctx context.Context, campaignID string) (*Result, error) {
	tracer := otel.Tracer("dispatch")
	ctx, span := tracer.Start(ctx, "send_campaign")
	defer span.End()
	span.SetAttributes(attribute.String("campaign.id", campaignID))

	cmp, err := d.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	// Entry guard: re-dispatching a campaign that already ran (or is mid
	// flight) would write duplicate ledger entries, so only draft and
	// scheduled campaigns are dispatchable.
	if cmp.Status != campaign.StatusDraft && cmp.Status != campaign.StatusScheduled {
		return nil, fmt.Errorf("%w: status is %q", campaign.ErrInvalidState, cmp.Status)
	}

	adapter, ok := d.Adapters[cmp.Channel]
	if !ok {
		return nil, fmt.Errorf("unsupported campaign channel %q", cmp.Channel)
	}

	if err := d.Campaigns.MarkSending(ctx, cmp.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	customers, err := d.Customers.ListBySegment(ctx, cmp.RestaurantID, cmp.Segment)
	if err != nil {
		// The campaign is now visibly stuck in sending; recovery is an
		// external reconciliation concern.
		return nil, fmt.Errorf("resolve audience: %w", err)
	}

	logger := d.Logger.With().Str("campaign_id", cmp.ID).Logger()
	logger.Info().Int("recipients", len(customers)).Str("channel", string(cmp.Channel)).Msg("dispatch started")

	result := d.fanOut(ctx, cmp, adapter, customers)

	final := campaign.StatusSent
	if result.Failed > 0 {
		// partial covers the all-failed case too; a true failed terminal
		// status is only ever assigned by external reconciliation.
		final = campaign.StatusPartial
	}
	if err := d.Campaigns.Complete(ctx, cmp.ID, final, result.Sent, result.Failed, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("finalize campaign: %w", err)
	}

	logger.Info().
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Str("status", string(final)).
		Msg("dispatch completed")
	return result, nil
}

// fanOut attempts every recipient on a bounded worker pool. Each recipient is
// isolated: render, send, ledger append, tally.
func (d *Dispatcher) fanOut(ctx context.Context, cmp *campaign.Campaign, adapter channel.Adapter, customers []campaign.Customer) *Result {
	workers := d.Workers
	if workers <= 0 {
		workers = 8
	}
	if workers > len(customers) && len(customers) > 0 {
		workers = len(customers)
	}

	result := &Result{Total: len(customers), Errors: []string{}}
	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan campaign.Customer)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cust := range jobs {
				sent, errText := d.attempt(ctx, cmp, adapter, cust)
				mu.Lock()
				if sent {
					result.Sent++
				} else {
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("Customer %s: %s", cust.Name, errText))
				}
				mu.Unlock()
			}
		}()
	}

	for _, cust := range customers {
		jobs <- cust
	}
	close(jobs)
	wg.Wait()

	return result
}

// attempt processes a single recipient and returns whether the send was
// accepted plus the error text when it was not.
func (d *Dispatcher) attempt(ctx context.Context, cmp *campaign.Campaign, adapter channel.Adapter, cust campaign.Customer) (bool, string) {
	content := render.Render(cmp.Message, cust)

	rec := campaign.DeliveryRecord{
		ID:           uuid.NewString(),
		CampaignID:   cmp.ID,
		CustomerID:   cust.ID,
		Channel:      cmp.Channel,
		Content:      content,
		SentAt:       time.Now().UTC(),
		RestaurantID: cmp.RestaurantID,
	}

	receipt, sendErr := adapter.Send(ctx, cmp, cust, content)
	if sendErr != nil {
		rec.Status = campaign.DeliveryFailed
		rec.Error = sendErr.Error()
	} else {
		rec.Status = campaign.DeliverySent
		rec.ProviderRef = receipt.ProviderRef
	}

	if err := d.Ledger.Append(ctx, rec); err != nil {
		d.Logger.Error().Err(err).
			Str("campaign_id", cmp.ID).
			Str("customer_id", cust.ID).
			Msg("ledger append failed")
		if sendErr == nil {
			// The message went out but we lost the record; count it as
			// failed so the aggregate never overstates delivery.
			sendErr = fmt.Errorf("record delivery: %w", err)
		}
	}

	if sendErr != nil {
		recipientCounter.WithLabelValues(string(cmp.Channel), "failed").Inc()
		return false, sendErr.Error()
	}
	recipientCounter.WithLabelValues(string(cmp.Channel), "sent").Inc()
	return true, ""
}

// Schedule transitions a draft campaign to scheduled. The future trigger that
// eventually calls Send is owned by external infrastructure.
func (d *Dispatcher) Schedule(ctx context.Context, campaignID string) error {
	cmp, err := d.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if cmp.Status != campaign.StatusDraft {
		return fmt.Errorf("%w: status is %q", campaign.ErrInvalidState, cmp.Status)
	}
	return d.Campaigns.UpdateStatus(ctx, cmp.ID, campaign.StatusScheduled)
}
