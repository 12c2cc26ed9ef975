package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/vocero-ai/vocero/internal/call"
	"github.com/vocero-ai/vocero/internal/observe"
	"github.com/vocero-ai/vocero/pkg/audio"
	"github.com/vocero-ai/vocero/pkg/realtime"
)

// Inbound media stream events. The provider sends JSON frames with an
// "event" discriminator; payloads are decoded at this boundary and flow
// onward as typed values.

type streamEvent struct {
	Event string        `json:"event"`
	Start *startPayload `json:"start,omitempty"`
	Media *mediaPayload `json:"media,omitempty"`
}

type startPayload struct {
	CallSid          string            `json:"callSid"`
	StreamSid        string            `json:"streamSid"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

type mediaPayload struct {
	Payload string `json:"payload"` // base64 u-law audio
}

// outboundMedia carries synthesised agent audio back to the provider.
type outboundMedia struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

// StreamConfig holds the dependencies of a [StreamHandler].
type StreamConfig struct {
	Registry *call.Registry
	Machine  *call.Machine
	AI       realtime.Provider

	// Voice is the synthesised voice id passed to the AI provider.
	Voice string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// StreamHandler serves the media stream socket. One connection carries one
// call: the start event binds it to the session the webhook registered, the
// media events stream caller audio to the AI session, and stop (or socket
// close) finalizes the call. Both teardown triggers funnel into the same
// idempotent finalize.
type StreamHandler struct {
	registry *call.Registry
	machine  *call.Machine
	ai       realtime.Provider
	voice    string
	metrics  *observe.Metrics
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(cfg StreamConfig) *StreamHandler {
	h := &StreamHandler{
		registry: cfg.Registry,
		machine:  cfg.Machine,
		ai:       cfg.AI,
		voice:    cfg.Voice,
		metrics:  cfg.Metrics,
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("media stream accept failed", "err", err)
		return
	}
	h.handle(r.Context(), conn)
}

func (h *StreamHandler) handle(ctx context.Context, conn *websocket.Conn) {
	log := observe.Logger(ctx)

	var (
		sess    *call.Session
		aiSess  realtime.SessionHandle
		pumps   errgroup.Group
		started bool
	)
	defer func() {
		// Finalize runs on a fresh context: the socket's context is already
		// torn down when the peer closed without a stop event.
		if sess != nil {
			h.machine.Finalize(context.Background(), sess)
		}
		if aiSess != nil {
			aiSess.Close()
			_ = pumps.Wait()
		}
		conn.Close(websocket.StatusNormalClosure, "call ended")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var evt streamEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			log.Warn("undecodable media stream frame", "err", err)
			continue
		}

		switch evt.Event {
		case "start":
			if started || evt.Start == nil {
				continue
			}
			started = true

			callID := evt.Start.CallSid
			if callID == "" {
				callID = evt.Start.CustomParameters["callId"]
			}
			sess = h.registry.Get(callID)
			if sess == nil {
				// Never synthesize a session here: the webhook is the only
				// creation path.
				log.Error("media stream for unknown call", "call_id", callID)
				conn.Close(websocket.StatusPolicyViolation, "unknown call")
				return
			}
			sess.SetStreamID(evt.Start.StreamSid)

			aiSess, err = h.openAI(ctx, sess)
			if err != nil {
				log.Error("ai session connect failed", "call_id", callID, "err", err)
				h.metrics.UpstreamErrors.Add(ctx, 1,
					metric.WithAttributes(attribute.String("stage", "connect")))
				conn.Close(websocket.StatusInternalError, "upstream unavailable")
				return
			}
			log.Info("media stream bound",
				"call_id", callID, "stream_id", evt.Start.StreamSid)

			h.startPumps(ctx, &pumps, conn, sess, aiSess, evt.Start.StreamSid)

		case "media":
			if aiSess == nil || sess == nil || evt.Media == nil {
				continue
			}
			if sess.Status() == call.StatusEnded {
				continue
			}
			chunk, err := base64.StdEncoding.DecodeString(evt.Media.Payload)
			if err != nil {
				continue
			}
			// Frames are only valuable in real time: a failed forward is
			// dropped, never buffered or retried.
			_ = aiSess.SendAudio(chunk)

		case "stop":
			log.Info("media stream stopped", "call_id", callIDOf(sess))
			return
		}
	}
}

func (h *StreamHandler) openAI(ctx context.Context, sess *call.Session) (realtime.SessionHandle, error) {
	var instructions string
	if sess.Profile != nil {
		instructions = sess.Profile.Instructions()
	}
	return h.ai.Connect(ctx, realtime.SessionConfig{
		Voice:        h.voice,
		Instructions: instructions,
		InputFormat:  audio.FormatG711ULaw,
		OutputFormat: audio.FormatG711ULaw,
	})
}

// startPumps launches the two output pumps: synthesised audio back to the
// provider socket, transcript lines into the state machine.
func (h *StreamHandler) startPumps(ctx context.Context, pumps *errgroup.Group, conn *websocket.Conn, sess *call.Session, aiSess realtime.SessionHandle, streamID string) {
	pumps.Go(func() error {
		for chunk := range aiSess.Audio() {
			msg := outboundMedia{
				Event:     "media",
				StreamSid: streamID,
				Media:     mediaPayload{Payload: base64.StdEncoding.EncodeToString(chunk)},
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return nil
			}
		}
		if err := aiSess.Err(); err != nil {
			observe.Logger(ctx).Warn("ai session terminated", "call_id", sess.CallID, "err", err)
			h.metrics.UpstreamErrors.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("stage", "stream")))
		}
		return nil
	})

	pumps.Go(func() error {
		for line := range aiSess.Transcripts() {
			role := call.RoleCaller
			if line.Speaker == realtime.SpeakerAssistant {
				role = call.RoleAgent
			}
			h.machine.HandleLine(sess, role, line.Text)
		}
		return nil
	})
}

func callIDOf(sess *call.Session) string {
	if sess == nil {
		return ""
	}
	return sess.CallID
}
