package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmailClientInlineSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k1" {
			t.Fatalf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message_id":"m-1"}`))
	}))
	defer srv.Close()

	c := &EmailClient{Endpoint: srv.URL, APIKey: "k1", Sender: "no-reply@x.com", ReplyTo: "hello@x.com"}
	id, err := c.Send(context.Background(), EmailRequest{
		To:          "alice@x.com",
		Subject:     "Weekend Special",
		HTMLContent: "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "m-1" {
		t.Fatalf("message id = %q, want m-1", id)
	}
	if got["from"] != "no-reply@x.com" || got["reply_to"] != "hello@x.com" {
		t.Fatalf("sender fields wrong: %v", got)
	}
	if got["subject"] != "Weekend Special" || got["html"] != "<p>hi</p>" {
		t.Fatalf("content fields wrong: %v", got)
	}
}

func TestEmailClientTemplateSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message_id":"m-2"}`))
	}))
	defer srv.Close()

	c := &EmailClient{Endpoint: srv.URL}
	_, err := c.Send(context.Background(), EmailRequest{
		To:           "alice@x.com",
		TemplateID:   "welcome-v2",
		TemplateData: map[string]any{"name": "Alice"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["template_id"] != "welcome-v2" {
		t.Fatalf("template_id = %v, want welcome-v2", got["template_id"])
	}
	if _, hasSubject := got["subject"]; hasSubject {
		t.Fatal("template sends must not carry an inline subject")
	}
}

func TestEmailClientErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"client error", http.StatusBadRequest},
		{"server error", http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			c := &EmailClient{Endpoint: srv.URL}
			if _, err := c.Send(context.Background(), EmailRequest{To: "a@x.com"}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
