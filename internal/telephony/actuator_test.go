package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vocero-ai/vocero/internal/resilience"
)

type recordedUpdate struct {
	path string
	form map[string]string
	user string
	pass string
}

func startTwilioServer(t *testing.T, status int) (*httptest.Server, chan recordedUpdate) {
	t.Helper()
	updates := make(chan recordedUpdate, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		user, pass, _ := r.BasicAuth()
		updates <- recordedUpdate{path: r.URL.Path, form: form, user: user, pass: pass}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv, updates
}

func TestTwilioActuator_SendDigits(t *testing.T) {
	srv, updates := startTwilioServer(t, 200)
	a := NewTwilioActuator("AC123", "token", WithAPIBase(srv.URL))

	if err := a.SendDigits(context.Background(), "CA1", "2"); err != nil {
		t.Fatalf("SendDigits: %v", err)
	}

	u := <-updates
	if u.path != "/Accounts/AC123/Calls/CA1.json" {
		t.Errorf("path = %q", u.path)
	}
	if u.user != "AC123" || u.pass != "token" {
		t.Errorf("basic auth = %q/%q", u.user, u.pass)
	}
	twiml := u.form["Twiml"]
	if !strings.Contains(twiml, `<Play digits="2"/>`) {
		t.Errorf("Twiml = %q", twiml)
	}
	if !strings.Contains(twiml, "<Pause") {
		t.Errorf("Twiml missing pause after digits: %q", twiml)
	}
}

func TestTwilioActuator_Hangup(t *testing.T) {
	srv, updates := startTwilioServer(t, 200)
	a := NewTwilioActuator("AC123", "token", WithAPIBase(srv.URL))

	if err := a.Hangup(context.Background(), "CA1"); err != nil {
		t.Fatalf("Hangup: %v", err)
	}

	u := <-updates
	if got := u.form["Status"]; got != "completed" {
		t.Errorf("Status = %q, want completed", got)
	}
}

func TestTwilioActuator_ErrorStatus(t *testing.T) {
	srv, _ := startTwilioServer(t, 401)
	a := NewTwilioActuator("AC123", "bad-token", WithAPIBase(srv.URL))

	err := a.Hangup(context.Background(), "CA1")
	if err == nil {
		t.Fatal("Hangup succeeded against a 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error does not carry the status: %v", err)
	}
}

func TestTwilioActuator_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv, updates := startTwilioServer(t, 500)
	a := NewTwilioActuator("AC123", "token", WithAPIBase(srv.URL))

	for range 5 {
		if err := a.Hangup(context.Background(), "CA1"); err == nil {
			t.Fatal("Hangup succeeded against a 500 response")
		}
	}
	for range 5 {
		<-updates
	}

	err := a.Hangup(context.Background(), "CA1")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	select {
	case u := <-updates:
		t.Errorf("open breaker still reached the API: %+v", u)
	default:
	}
}
