package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vocero-ai/vocero/internal/call"
	"github.com/vocero-ai/vocero/internal/resilience"
)

// defaultAPIBase is the Twilio REST API root.
const defaultAPIBase = "https://api.twilio.com/2010-04-01"

// Compile-time interface check.
var _ call.Actuator = (*TwilioActuator)(nil)

// TwilioOption configures a [TwilioActuator].
type TwilioOption func(*TwilioActuator)

// WithHTTPClient overrides the HTTP client used for REST calls.
func WithHTTPClient(c *http.Client) TwilioOption {
	return func(a *TwilioActuator) { a.client = c }
}

// WithAPIBase overrides the REST API root. Used in tests to point at a local
// mock server.
func WithAPIBase(base string) TwilioOption {
	return func(a *TwilioActuator) { a.apiBase = base }
}

// TwilioActuator implements [call.Actuator] against the Twilio Calls REST
// resource. Digits are pressed by updating the live call with Play TwiML;
// hangup sets the call status to completed. A circuit breaker fails control
// calls fast when the API keeps erroring.
type TwilioActuator struct {
	accountSID string
	authToken  string
	apiBase    string
	client     *http.Client
	breaker    *resilience.CircuitBreaker
}

// NewTwilioActuator creates an actuator authenticated with the given account
// credentials.
func NewTwilioActuator(accountSID, authToken string, opts ...TwilioOption) *TwilioActuator {
	a := &TwilioActuator{
		accountSID: accountSID,
		authToken:  authToken,
		apiBase:    defaultAPIBase,
		client:     http.DefaultClient,
		breaker:    resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "twilio"}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SendDigits plays DTMF digits into the live call. The trailing pause keeps
// the call leg open while the far-end menu reacts.
func (a *TwilioActuator) SendDigits(ctx context.Context, callID, digits string) error {
	form := url.Values{
		"Twiml": {fmt.Sprintf(`<Response><Play digits="%s"/><Pause length="2"/></Response>`, digits)},
	}
	return a.updateCall(ctx, callID, form)
}

// Hangup terminates the live call.
func (a *TwilioActuator) Hangup(ctx context.Context, callID string) error {
	form := url.Values{"Status": {"completed"}}
	return a.updateCall(ctx, callID, form)
}

func (a *TwilioActuator) updateCall(ctx context.Context, callID string, form url.Values) error {
	return a.breaker.Execute(func() error {
		return a.doUpdateCall(ctx, callID, form)
	})
}

func (a *TwilioActuator) doUpdateCall(ctx context.Context, callID string, form url.Values) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", a.apiBase, a.accountSID, callID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telephony: build request: %w", err)
	}
	req.SetBasicAuth(a.accountSID, a.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: update call %s: %w", callID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telephony: update call %s: status %d: %s",
			callID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
