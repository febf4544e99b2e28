// Package webhook ingests provider delivery callbacks and refines ledger
// entries from "accepted for delivery" to what actually happened.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/campaign-dispatch/internal/campaign"
	"github.com/example/campaign-dispatch/internal/common"
)

var eventCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_events_total",
	Help: "Total provider webhook events processed",
}, []string{"provider", "status"})

type Server struct {
	Ledger campaign.DeliveryStore
	Logger zerolog.Logger
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/providers/{provider}/events", s.handle)
	return r
}

// Event is a provider callback normalized onto the ledger's vocabulary.
type Event struct {
	ProviderRef string
	Status      string
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("webhook").Start(r.Context(), "provider-event")
	defer span.End()

	providerName := chi.URLParam(r, "provider")

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondErr(ctx, w, http.StatusBadRequest, providerName, err)
		return
	}

	event, err := Normalize(providerName, payload)
	if err != nil {
		s.respondErr(ctx, w, http.StatusBadRequest, providerName, err)
		return
	}
	span.SetAttributes(
		attribute.String("provider.ref", event.ProviderRef),
		attribute.String("delivery.status", event.Status),
	)

	if err := s.Ledger.UpdateByProviderRef(ctx, event.ProviderRef, event.Status); err != nil {
		s.respondErr(ctx, w, http.StatusInternalServerError, providerName, err)
		return
	}

	eventCounter.WithLabelValues(providerName, event.Status).Inc()
	w.WriteHeader(http.StatusAccepted)
}

// Normalize maps a raw provider payload to a ledger update. SES-style email
// events carry message_id/event; Twilio status callbacks carry
// MessageSid/MessageStatus.
func Normalize(providerName string, payload map[string]any) (Event, error) {
	switch providerName {
	case "ses":
		ref, _ := payload["message_id"].(string)
		if ref == "" {
			return Event{}, errors.New("ses message_id missing")
		}
		kind, _ := payload["event"].(string)
		switch kind {
		case "delivery":
			return Event{ProviderRef: ref, Status: campaign.DeliveryDelivered}, nil
		case "bounce", "complaint":
			return Event{ProviderRef: ref, Status: campaign.DeliveryBounced}, nil
		case "reject":
			return Event{ProviderRef: ref, Status: campaign.DeliveryFailed}, nil
		default:
			return Event{}, fmt.Errorf("unsupported ses event %q", kind)
		}
	case "twilio":
		ref, _ := payload["MessageSid"].(string)
		if ref == "" {
			return Event{}, errors.New("twilio MessageSid missing")
		}
		status, _ := payload["MessageStatus"].(string)
		switch status {
		case "delivered":
			return Event{ProviderRef: ref, Status: campaign.DeliveryDelivered}, nil
		case "undelivered", "failed":
			return Event{ProviderRef: ref, Status: campaign.DeliveryFailed}, nil
		default:
			return Event{}, fmt.Errorf("unsupported twilio status %q", status)
		}
	default:
		return Event{}, errors.New("unsupported provider")
	}
}

func (s *Server) respondErr(ctx context.Context, w http.ResponseWriter, status int, providerName string, err error) {
	logger := common.WithContext(ctx, s.Logger)
	logger.Error().Err(err).Int("status", status).Str("provider", providerName).Msg("webhook event rejected")
	eventCounter.WithLabelValues(providerName, "error").Inc()
	http.Error(w, err.Error(), status)
}
