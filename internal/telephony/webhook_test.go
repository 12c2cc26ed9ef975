package telephony

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/vocero-ai/vocero/internal/call"
	"github.com/vocero-ai/vocero/internal/profile"
)

func newTestWebhook(t *testing.T) (*Webhook, *call.Registry, *profile.MemStore) {
	t.Helper()
	profiles := profile.NewMemStore()
	registry := call.NewRegistry()
	h := NewWebhook(profiles, registry, "wss://vocero.example.com/media-stream", nil)
	return h, registry, profiles
}

func seedProfile(t *testing.T, store *profile.MemStore, key string) {
	t.Helper()
	err := store.Upsert(context.Background(), &profile.Profile{
		ClientKey:   key,
		AgentName:   "Carlos",
		CompanyName: "Aceros del Norte",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func postIncomingCall(h *Webhook, clientKey, callSid string) *httptest.ResponseRecorder {
	form := url.Values{"CallSid": {callSid}, "From": {"+525512345678"}}
	req := httptest.NewRequest("POST", "/calls/incoming?client_key="+clientKey,
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_AcceptsCall(t *testing.T) {
	h, registry, profiles := newTestWebhook(t)
	seedProfile(t, profiles, "acme")

	rec := postIncomingCall(h, "acme", "CA1")

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"<Connect>",
		`url="wss://vocero.example.com/media-stream"`,
		`name="callId" value="CA1"`,
		`name="clientKey" value="acme"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("response missing %q:\n%s", want, body)
		}
	}

	sess := registry.Get("CA1")
	if sess == nil {
		t.Fatal("session not registered")
	}
	if sess.Status() != call.StatusStreaming {
		t.Errorf("status = %s, want %s", sess.Status(), call.StatusStreaming)
	}
	if sess.Profile == nil || sess.Profile.AgentName != "Carlos" {
		t.Error("profile not attached to session")
	}
}

func TestWebhook_UnknownClientKey(t *testing.T) {
	h, registry, _ := newTestWebhook(t)

	rec := postIncomingCall(h, "nobody", "CA2")

	if rec.Code != 200 {
		t.Fatalf("status = %d, provider expects a TwiML response", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Hangup>") {
		t.Errorf("error response missing <Hangup>:\n%s", body)
	}
	if strings.Contains(body, "<Connect>") {
		t.Errorf("error response must not open a stream:\n%s", body)
	}
	if registry.Len() != 0 {
		t.Error("session created despite missing profile")
	}
}

func TestWebhook_DuplicateCallSid(t *testing.T) {
	h, registry, profiles := newTestWebhook(t)
	seedProfile(t, profiles, "acme")

	postIncomingCall(h, "acme", "CA3")
	rec := postIncomingCall(h, "acme", "CA3")

	if !strings.Contains(rec.Body.String(), "<Hangup>") {
		t.Error("duplicate call not rejected")
	}
	if registry.Len() != 1 {
		t.Errorf("sessions = %d, want 1", registry.Len())
	}
}

func TestWebhook_MissingCallSid(t *testing.T) {
	h, _, profiles := newTestWebhook(t)
	seedProfile(t, profiles, "acme")

	rec := postIncomingCall(h, "acme", "")
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
