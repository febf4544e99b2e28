// Package message exposes the direct single-message send endpoints used by
// the dashboard's settings/test-message screens. They bypass the campaign
// dispatcher and talk straight to the providers.
package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/campaign-dispatch/internal/common"
	"github.com/example/campaign-dispatch/internal/provider"
)

// ErrInvalidRecipient is returned for malformed addresses/numbers before any
// send is attempted.
var ErrInvalidRecipient = errors.New("invalid recipient")

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+\d{10,15}$`)
)

var sendCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "single_message_sends_total",
	Help: "Direct single-message sends by channel and status",
}, []string{"channel", "status"})

type Handler struct {
	Email  *provider.EmailClient
	Twilio *provider.TwilioClient
	// WhatsAppFrom and SMSFrom are the provider sender identities.
	WhatsAppFrom string
	SMSFrom      string

	tracer trace.Tracer
	logger zerolog.Logger
}

func NewHandler(email *provider.EmailClient, twilio *provider.TwilioClient, whatsappFrom, smsFrom string, logger zerolog.Logger) *Handler {
	return &Handler{
		Email:        email,
		Twilio:       twilio,
		WhatsAppFrom: whatsappFrom,
		SMSFrom:      smsFrom,
		tracer:       otel.Tracer("message-api"),
		logger:       logger,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/messages/email", h.sendEmail)
	r.Post("/v1/messages/whatsapp", h.sendWhatsApp)
	r.Post("/v1/messages/sms", h.sendSMS)
}

type emailRequest struct {
	To           string         `json:"to"`
	Subject      string         `json:"subject"`
	HTMLContent  string         `json:"html_content"`
	TextContent  string         `json:"text_content,omitempty"`
	TemplateID   string         `json:"template_id,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty"`
}

func (h *Handler) sendEmail(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "send-email")
	defer span.End()

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(ctx, w, http.StatusBadRequest, "email", err)
		return
	}
	if err := ValidateEmail(req.To); err != nil {
		h.respondErr(ctx, w, http.StatusBadRequest, "email", err)
		return
	}

	messageID, err := h.Email.Send(ctx, provider.EmailRequest{
		To:           req.To,
		Subject:      req.Subject,
		HTMLContent:  req.HTMLContent,
		TextContent:  req.TextContent,
		TemplateID:   req.TemplateID,
		TemplateData: req.TemplateData,
	})
	if err != nil {
		h.respondErr(ctx, w, http.StatusInternalServerError, "email", err)
		return
	}

	sendCounter.WithLabelValues("email", "ok").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message_id": messageID,
		"to":         req.To,
	})
}

type textRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	MediaURL string `json:"media_url,omitempty"`
}

func (h *Handler) sendWhatsApp(w http.ResponseWriter, r *http.Request) {
	h.sendText(w, r, "whatsapp", h.WhatsAppFrom, true)
}

func (h *Handler) sendSMS(w http.ResponseWriter, r *http.Request) {
	h.sendText(w, r, "sms", h.SMSFrom, false)
}

func (h *Handler) sendText(w http.ResponseWriter, r *http.Request, channel, from string, whatsapp bool) {
	ctx, span := h.tracer.Start(r.Context(), "send-"+channel)
	defer span.End()

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(ctx, w, http.StatusBadRequest, channel, err)
		return
	}
	if err := ValidatePhone(req.To); err != nil {
		h.respondErr(ctx, w, http.StatusBadRequest, channel, err)
		return
	}

	to := req.To
	if whatsapp {
		to = "whatsapp:" + to
	}
	msg, err := h.Twilio.SendMessage(ctx, from, to, req.Message, req.MediaURL)
	if err != nil {
		h.respondErr(ctx, w, http.StatusInternalServerError, channel, err)
		return
	}

	sendCounter.WithLabelValues(channel, "ok").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message_sid": msg.SID,
		"status":      msg.Status,
		"to":          msg.To,
		"from":        msg.From,
	})
}

// ValidateEmail rejects anything that does not look like local@domain.tld.
func ValidateEmail(addr string) error {
	if !emailPattern.MatchString(addr) {
		return fmt.Errorf("%w: invalid email address format", ErrInvalidRecipient)
	}
	return nil
}

// ValidatePhone requires +<country><number>, 10 to 15 digits total.
func ValidatePhone(num string) error {
	if !phonePattern.MatchString(num) {
		return fmt.Errorf("%w: phone number must be +country_code followed by number", ErrInvalidRecipient)
	}
	return nil
}

func (h *Handler) respondErr(ctx context.Context, w http.ResponseWriter, status int, channel string, err error) {
	logger := common.WithContext(ctx, h.logger)
	logger.Error().Err(err).Int("status", status).Str("channel", channel).Msg("single message send failed")
	sendCounter.WithLabelValues(channel, "error").Inc()
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
