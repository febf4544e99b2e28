package message

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/example/campaign-dispatch/internal/provider"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"alice@example.com", false},
		{"a.b+tag@sub.example.co", false},
		{"no-at-sign", true},
		{"spaces in@example.com", true},
		{"missing@tld", true},
		{"", true},
	}
	for _, tc := range tests {
		err := ValidateEmail(tc.addr)
		if tc.wantErr && err == nil {
			t.Fatalf("ValidateEmail(%q): expected error", tc.addr)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("ValidateEmail(%q): unexpected error %v", tc.addr, err)
		}
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		num     string
		wantErr bool
	}{
		{"+254700000001", false},
		{"+12025550147", false},
		{"+123456789", true},        // 9 digits, too short
		{"+1234567890123456", true}, // 16 digits, too long
		{"254700000001", true},      // no plus
		{"+2547000x0001", true},
		{"", true},
	}
	for _, tc := range tests {
		err := ValidatePhone(tc.num)
		if tc.wantErr && err == nil {
			t.Fatalf("ValidatePhone(%q): expected error", tc.num)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("ValidatePhone(%q): unexpected error %v", tc.num, err)
		}
	}
}

func newTestHandler(emailEndpoint, twilioBase string) http.Handler {
	h := NewHandler(
		&provider.EmailClient{Endpoint: emailEndpoint, Sender: "no-reply@x.com"},
		&provider.TwilioClient{AccountSID: "AC123", AuthToken: "secret", BaseURL: twilioBase},
		"whatsapp:+14155238886",
		"+14155550100",
		zerolog.Nop(),
	)
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestSendEmailRejectsBadAddress(t *testing.T) {
	router := newTestHandler("http://unused.local", "http://unused.local")

	req := httptest.NewRequest(http.MethodPost, "/v1/messages/email",
		strings.NewReader(`{"to":"not-an-email","subject":"s","html_content":"<p>x</p>"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"message_id":"msg-9"}`))
	}))
	defer srv.Close()

	router := newTestHandler(srv.URL, "http://unused.local")
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/email",
		strings.NewReader(`{"to":"alice@example.com","subject":"hello","html_content":"<p>hi</p>"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message_id"] != "msg-9" {
		t.Fatalf("message_id = %v, want msg-9", body["message_id"])
	}
}

func TestSendWhatsApp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("To"); got != "whatsapp:+254700000001" {
			t.Fatalf("To = %q, want whatsapp-prefixed number", got)
		}
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued","to":"whatsapp:+254700000001","from":"whatsapp:+14155238886"}`))
	}))
	defer srv.Close()

	router := newTestHandler("http://unused.local", srv.URL)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/whatsapp",
		strings.NewReader(`{"to":"+254700000001","message":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message_sid"] != "SM1" {
		t.Fatalf("message_sid = %v, want SM1", body["message_sid"])
	}
}

func TestSendSMSRejectsBadNumber(t *testing.T) {
	router := newTestHandler("http://unused.local", "http://unused.local")
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/sms",
		strings.NewReader(`{"to":"0700123456","message":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
