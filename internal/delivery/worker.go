// Package delivery contains the queue consumer that performs the actual
// WhatsApp/SMS sends the dispatcher only enqueued.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/campaign-dispatch/internal/campaign"
	"github.com/example/campaign-dispatch/internal/channel"
	"github.com/example/campaign-dispatch/internal/provider"
)

var deliveryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "queued_deliveries_total",
	Help: "Queued message deliveries by channel and outcome",
}, []string{"channel", "outcome"})

// Sender is the provider call the worker drives; *provider.TwilioClient
// satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, from, to, body, mediaURL string) (*provider.TwilioMessage, error)
}

type Worker struct {
	Channel       campaign.Channel
	ReaderFactory func() *kafka.Reader
	DLQWriter     channel.Publisher
	Sender        Sender
	// From is the provider sender identity for this channel.
	From   string
	Ledger campaign.DeliveryStore
	Logger zerolog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Sender == nil || w.ReaderFactory == nil {
		return errors.New("delivery worker requires a sender and a reader factory")
	}
	reader := w.ReaderFactory()
	defer reader.Close()
	tracer := otel.Tracer(string(w.Channel) + "-worker")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetch message: %w", err)
		}

		var queued channel.QueuedMessage
		if err := json.Unmarshal(msg.Value, &queued); err != nil {
			w.Logger.Error().Err(err).Msg("failed to decode queued message")
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		spanCtx, span := tracer.Start(ctx, "deliver_queued")
		span.SetAttributes(
			attribute.String("campaign.id", queued.CampaignID),
			attribute.String("customer.id", queued.CustomerID),
		)

		if err := w.handle(spanCtx, queued); err != nil {
			span.RecordError(err)
			span.End()
			return err
		}

		span.End()
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

// handle delivers one queued message: provider send with per-attempt timeout
// and capped backoff, then a ledger status refinement. Exhausted messages go
// to the DLQ; a DLQ write failure is the only error that stops the worker.
func (w *Worker) handle(ctx context.Context, queued channel.QueuedMessage) error {
	to := queued.To
	if w.Channel == campaign.ChannelWhatsApp {
		to = "whatsapp:" + to
	}

	var sent *provider.TwilioMessage
	op := backoff.NewExponentialBackOff()
	op.MaxElapsedTime = 5 * time.Second
	err := backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		msg, err := w.Sender.SendMessage(attemptCtx, w.From, to, queued.Message, "")
		if err != nil {
			return err
		}
		sent = msg
		return nil
	}, op)

	if err != nil {
		deliveryCounter.WithLabelValues(string(w.Channel), "failed").Inc()
		w.Logger.Warn().Err(err).
			Str("campaign_id", queued.CampaignID).
			Str("customer_id", queued.CustomerID).
			Msg("provider send exhausted, writing to DLQ")
		if markErr := w.Ledger.MarkOutcome(ctx, queued.CampaignID, queued.CustomerID, campaign.DeliveryFailed, "", err.Error()); markErr != nil {
			w.Logger.Error().Err(markErr).Msg("failed to mark delivery failed")
		}
		return w.writeDLQ(ctx, queued)
	}

	deliveryCounter.WithLabelValues(string(w.Channel), "delivered").Inc()
	if err := w.Ledger.MarkOutcome(ctx, queued.CampaignID, queued.CustomerID, campaign.DeliveryDelivered, sent.SID, ""); err != nil {
		w.Logger.Error().Err(err).Msg("failed to mark delivery outcome")
	}
	return nil
}

func (w *Worker) writeDLQ(ctx context.Context, queued channel.QueuedMessage) error {
	payload, err := json.Marshal(queued)
	if err != nil {
		return fmt.Errorf("marshal dlq message: %w", err)
	}
	return w.DLQWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(queued.CampaignID),
		Value: payload,
	})
}
