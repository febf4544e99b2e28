package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/example/campaign-dispatch/internal/common"
)

type Handler struct {
	Aggregator *Aggregator
	Logger     zerolog.Logger
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/v1/reports/campaigns", h.campaigns)
}

func (h *Handler) campaigns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	restaurantID := r.URL.Query().Get("restaurant_id")
	if restaurantID == "" {
		h.respondErr(ctx, w, http.StatusBadRequest, errors.New("restaurant_id is required"))
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			h.respondErr(ctx, w, http.StatusBadRequest, err)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			h.respondErr(ctx, w, http.StatusBadRequest, err)
			return
		}
	}

	rep, err := h.Aggregator.CampaignsReport(ctx, restaurantID, from, to)
	if err != nil {
		h.respondErr(ctx, w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": rep})
}

func (h *Handler) respondErr(ctx context.Context, w http.ResponseWriter, status int, err error) {
	logger := common.WithContext(ctx, h.Logger)
	logger.Error().Err(err).Int("status", status).Msg("campaign report failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}
