// Package testbench serves the browser test harness: a socket protocol that
// lets a client talk to the AI sales agent without placing a phone call.
// Audio arrives as base64 PCM16 chunks, turn boundaries are driven manually
// with a short pacing delay, and synthesised replies go back wrapped in WAV
// containers the browser can play directly.
package testbench

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/vocero-ai/vocero/internal/observe"
	"github.com/vocero-ai/vocero/internal/profile"
	"github.com/vocero-ai/vocero/pkg/audio"
	"github.com/vocero-ai/vocero/pkg/realtime"
)

// DefaultPaceDelay is how long after the last audio chunk the input turn is
// committed and a response requested.
const DefaultPaceDelay = 500 * time.Millisecond

// clientMessage is the envelope for frames sent by the test client.
type clientMessage struct {
	Type      string `json:"type"`
	ClientKey string `json:"clientKey,omitempty"`
	Payload   string `json:"payload,omitempty"` // base64 PCM16
}

// serverMessage is the envelope for frames sent to the test client.
type serverMessage struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Text      string    `json:"text,omitempty"`
	Payload   string    `json:"payload,omitempty"` // base64 WAV
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Config holds the dependencies of a [Handler].
type Config struct {
	Profiles profile.Store
	AI       realtime.Provider

	// Voice is the synthesised voice id passed to the AI provider.
	Voice string

	// PaceDelay overrides [DefaultPaceDelay]. Used in tests.
	PaceDelay time.Duration

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Handler serves the test harness socket endpoint.
type Handler struct {
	profiles  profile.Store
	ai        realtime.Provider
	voice     string
	paceDelay time.Duration
	metrics   *observe.Metrics
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		profiles:  cfg.Profiles,
		ai:        cfg.AI,
		voice:     cfg.Voice,
		paceDelay: cfg.PaceDelay,
		metrics:   cfg.Metrics,
	}
	if h.paceDelay == 0 {
		h.paceDelay = DefaultPaceDelay
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("test stream accept failed", "err", err)
		return
	}
	h.handle(r.Context(), conn)
}

// benchConn wraps the socket with a write lock: the pump goroutine and the
// read loop both send frames.
type benchConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *benchConn) send(ctx context.Context, msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (h *Handler) handle(ctx context.Context, conn *websocket.Conn) {
	log := observe.Logger(ctx)
	bc := &benchConn{conn: conn}

	var (
		aiSess    realtime.SessionHandle
		pumps     errgroup.Group
		paceTimer *time.Timer
	)
	defer func() {
		if paceTimer != nil {
			paceTimer.Stop()
		}
		if aiSess != nil {
			aiSess.Close()
			_ = pumps.Wait()
		}
		conn.Close(websocket.StatusNormalClosure, "session ended")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = bc.send(ctx, serverMessage{Type: "error", Message: "undecodable frame"})
			continue
		}

		switch msg.Type {
		case "session.start":
			if aiSess != nil {
				_ = bc.send(ctx, serverMessage{Type: "error", Message: "session already started"})
				continue
			}
			prof, err := h.profiles.Get(ctx, msg.ClientKey)
			if err != nil {
				if errors.Is(err, profile.ErrNotFound) {
					_ = bc.send(ctx, serverMessage{Type: "error", Message: "unknown client key"})
				} else {
					log.Error("test session profile lookup failed", "client_key", msg.ClientKey, "err", err)
					_ = bc.send(ctx, serverMessage{Type: "error", Message: "profile lookup failed"})
				}
				return
			}

			aiSess, err = h.ai.Connect(ctx, realtime.SessionConfig{
				Voice:        h.voice,
				Instructions: prof.Instructions(),
				InputFormat:  audio.FormatPCM16,
				OutputFormat: audio.FormatPCM16,
				ManualTurns:  true,
			})
			if err != nil {
				log.Error("test session ai connect failed", "client_key", msg.ClientKey, "err", err)
				_ = bc.send(ctx, serverMessage{Type: "error", Message: "upstream unavailable"})
				return
			}

			sessionID := fmt.Sprintf("test_%d", time.Now().UnixMilli())
			log.Info("test session started", "session_id", sessionID, "client_key", msg.ClientKey)
			_ = bc.send(ctx, serverMessage{Type: "session.started", SessionID: sessionID})
			_ = bc.send(ctx, serverMessage{
				Type:      "agent.text",
				Text:      prof.Greeting(),
				Timestamp: time.Now().UTC(),
			})

			h.startPumps(ctx, &pumps, bc, aiSess)

			// The pacing timer commits the input turn after a quiet gap.
			paceTimer = time.AfterFunc(time.Hour, func() {
				_ = aiSess.Commit()
				_ = aiSess.CreateResponse()
			})
			paceTimer.Stop()

		case "audio":
			if aiSess == nil {
				continue
			}
			chunk, err := base64.StdEncoding.DecodeString(msg.Payload)
			if err != nil {
				_ = bc.send(ctx, serverMessage{Type: "error", Message: "audio payload is not base64"})
				continue
			}
			if err := aiSess.SendAudio(chunk); err != nil {
				log.Warn("test session audio forward failed", "err", err)
				continue
			}
			paceTimer.Reset(h.paceDelay)

		case "session.end":
			_ = bc.send(ctx, serverMessage{Type: "session.ended"})
			return
		}
	}
}

// startPumps forwards model output to the test client: transcripts as text
// frames, audio chunks wrapped into WAV containers.
func (h *Handler) startPumps(ctx context.Context, pumps *errgroup.Group, bc *benchConn, aiSess realtime.SessionHandle) {
	pumps.Go(func() error {
		for chunk := range aiSess.Audio() {
			wav := audio.PCMToWAV(chunk, audio.ModelSampleRate, 1)
			msg := serverMessage{
				Type:    "agent.audio",
				Payload: base64.StdEncoding.EncodeToString(wav),
			}
			if err := bc.send(ctx, msg); err != nil {
				return nil
			}
		}
		return nil
	})

	pumps.Go(func() error {
		for line := range aiSess.Transcripts() {
			kind := "caller.text"
			if line.Speaker == realtime.SpeakerAssistant {
				kind = "agent.text"
			}
			msg := serverMessage{Type: kind, Text: line.Text, Timestamp: line.Timestamp}
			if err := bc.send(ctx, msg); err != nil {
				return nil
			}
		}
		return nil
	})
}
