package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/campaign-dispatch/internal/campaign"
	"github.com/example/campaign-dispatch/internal/common"
)

var (
	triggerCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_triggers_total",
		Help: "Total dispatch trigger requests by action and status",
	}, []string{"action", "status"})
	dispatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_duration_seconds",
		Help:    "End-to-end latency of campaign dispatch",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
)

type Handler struct {
	dispatcher *Dispatcher
	tracer     trace.Tracer
	logger     zerolog.Logger
}

func NewHandler(d *Dispatcher, logger zerolog.Logger) *Handler {
	return &Handler{
		dispatcher: d,
		tracer:     otel.Tracer("dispatch-api"),
		logger:     logger,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/campaigns/dispatch", h.trigger)
}

type triggerRequest struct {
	CampaignID string `json:"campaignId"`
	Action     string `json:"action"`
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "dispatch-trigger")
	defer span.End()

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(ctx, w, http.StatusBadRequest, req.Action, err)
		return
	}
	if req.CampaignID == "" {
		h.respondErr(ctx, w, http.StatusBadRequest, req.Action, errors.New("campaignId is required"))
		return
	}
	span.SetAttributes(
		attribute.String("campaign.id", req.CampaignID),
		attribute.String("action", req.Action),
	)

	start := time.Now()

	switch req.Action {
	case "send":
		result, err := h.dispatcher.Send(ctx, req.CampaignID)
		if err != nil {
			h.respondErr(ctx, w, statusForError(err), req.Action, err)
			return
		}
		dispatchLatency.WithLabelValues(req.Action).Observe(time.Since(start).Seconds())
		triggerCounter.WithLabelValues(req.Action, "ok").Inc()
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"results": result,
		})
	case "schedule":
		if err := h.dispatcher.Schedule(ctx, req.CampaignID); err != nil {
			h.respondErr(ctx, w, statusForError(err), req.Action, err)
			return
		}
		triggerCounter.WithLabelValues(req.Action, "ok").Inc()
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Campaign scheduled successfully",
		})
	default:
		h.respondErr(ctx, w, http.StatusBadRequest, req.Action, errors.New("Invalid action"))
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, campaign.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondErr(ctx context.Context, w http.ResponseWriter, status int, action string, err error) {
	logger := common.WithContext(ctx, h.logger)
	logger.Error().Err(err).Int("status", status).Str("action", action).Msg("dispatch trigger failed")
	if action == "" {
		action = "unknown"
	}
	triggerCounter.WithLabelValues(action, "error").Inc()
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
