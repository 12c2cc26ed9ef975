// Package telephony adapts the telephony provider to the call engine: the
// inbound-call webhook that answers with stream instructions, the media
// stream socket handler that bridges call audio to the AI session, and the
// REST actuator that presses digits and hangs up.
package telephony

import (
	"encoding/xml"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vocero-ai/vocero/internal/call"
	"github.com/vocero-ai/vocero/internal/observe"
	"github.com/vocero-ai/vocero/internal/profile"
)

// TwiML response documents returned to the provider.

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Say     *twimlSay     `xml:"Say,omitempty"`
	Hangup  *struct{}     `xml:"Hangup,omitempty"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
}

type twimlSay struct {
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Webhook answers the provider's inbound-call notification. It loads the
// persona profile for the client key, registers a fresh call session, and
// returns stream instructions that carry callId and clientKey as stream
// parameters so the socket side can correlate without a second lookup.
type Webhook struct {
	profiles  profile.Store
	registry  *call.Registry
	streamURL string
	metrics   *observe.Metrics
}

// NewWebhook creates the webhook handler. streamURL is the public wss:// URL
// of the media stream endpoint.
func NewWebhook(profiles profile.Store, registry *call.Registry, streamURL string, metrics *observe.Metrics) *Webhook {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Webhook{
		profiles:  profiles,
		registry:  registry,
		streamURL: streamURL,
		metrics:   metrics,
	}
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callID := r.PostFormValue("CallSid")
	if callID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}
	clientKey := r.URL.Query().Get("client_key")

	prof, err := h.profiles.Get(ctx, clientKey)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			log.Warn("no profile for inbound call",
				"call_id", callID, "client_key", clientKey)
			h.writeTwiML(w, errorTwiML("Lo sentimos, este número no está configurado."))
			return
		}
		log.Error("profile lookup failed", "call_id", callID, "err", err)
		h.writeTwiML(w, errorTwiML("Lo sentimos, ocurrió un error técnico."))
		return
	}

	sess := call.NewSession(callID, clientKey, prof)
	if err := h.registry.Add(sess); err != nil {
		log.Error("session registration failed", "call_id", callID, "err", err)
		h.writeTwiML(w, errorTwiML("Lo sentimos, ocurrió un error técnico."))
		return
	}

	h.metrics.CallsStarted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("client_key", clientKey)))
	h.metrics.ActiveCalls.Add(ctx, 1)
	log.Info("inbound call accepted",
		"call_id", callID, "client_key", clientKey, "from", r.PostFormValue("From"))

	h.writeTwiML(w, &twimlResponse{
		Connect: &twimlConnect{
			Stream: twimlStream{
				URL: h.streamURL,
				Parameters: []twimlParameter{
					{Name: "callId", Value: callID},
					{Name: "clientKey", Value: clientKey},
				},
			},
		},
	})
}

// errorTwiML builds the provider-visible error document: speak the message,
// then hang up. No session is created on this path.
func errorTwiML(message string) *twimlResponse {
	return &twimlResponse{
		Say:    &twimlSay{Language: "es-MX", Text: message},
		Hangup: &struct{}{},
	}
}

func (h *Webhook) writeTwiML(w http.ResponseWriter, doc *twimlResponse) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(doc)
}
