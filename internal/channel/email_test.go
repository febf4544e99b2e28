package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/campaign-dispatch/internal/campaign"
	"github.com/example/campaign-dispatch/internal/provider"
)

func TestEmailAdapterMissingAddress(t *testing.T) {
	a := &EmailAdapter{Client: &provider.EmailClient{Endpoint: "http://unused.local"}}

	_, err := a.Send(context.Background(), testCampaign(campaign.ChannelEmail), campaign.Customer{Name: "Bob"}, "hi")
	if !errors.Is(err, ErrMissingContact) {
		t.Fatalf("expected ErrMissingContact, got %v", err)
	}
}

func TestEmailAdapterSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id":"msg-123"}`))
	}))
	defer srv.Close()

	a := &EmailAdapter{Client: &provider.EmailClient{Endpoint: srv.URL, Sender: "no-reply@x.com"}}
	receipt, err := a.Send(context.Background(), testCampaign(campaign.ChannelEmail),
		campaign.Customer{Name: "Alice", Email: "alice@x.com"}, "<p>hi Alice</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ProviderRef != "msg-123" {
		t.Fatalf("provider ref = %q, want msg-123", receipt.ProviderRef)
	}
}

func TestEmailAdapterProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "address suppressed", http.StatusBadRequest)
	}))
	defer srv.Close()

	a := &EmailAdapter{Client: &provider.EmailClient{Endpoint: srv.URL}}
	_, err := a.Send(context.Background(), testCampaign(campaign.ChannelEmail),
		campaign.Customer{Name: "Alice", Email: "alice@x.com"}, "hi")
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}
