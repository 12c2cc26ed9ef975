package testbench

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vocero-ai/vocero/internal/profile"
	"github.com/vocero-ai/vocero/pkg/realtime"
	"github.com/vocero-ai/vocero/pkg/realtime/mock"
)

type benchFixture struct {
	provider *mock.Provider
	session  *mock.Session
	server   *httptest.Server
}

func newBenchFixture(t *testing.T) *benchFixture {
	t.Helper()

	profiles := profile.NewMemStore()
	err := profiles.Upsert(context.Background(), &profile.Profile{
		ClientKey:   "acme",
		AgentName:   "Carlos",
		CompanyName: "Aceros del Norte",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	f := &benchFixture{session: mock.NewSession()}
	f.provider = &mock.Provider{Session: f.session}

	h := NewHandler(Config{
		Profiles:  profiles,
		AI:        f.provider,
		Voice:     "sage",
		PaceDelay: 20 * time.Millisecond,
	})
	f.server = httptest.NewServer(h)
	t.Cleanup(f.server.Close)
	return f
}

func (f *benchFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(f.server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(msg)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

// recvType reads frames until one of the given type arrives.
func recvType(t *testing.T, conn *websocket.Conn, kind string) serverMessage {
	t.Helper()
	for range 10 {
		msg := recv(t, conn)
		if msg.Type == kind {
			return msg
		}
	}
	t.Fatalf("no %q frame received", kind)
	return serverMessage{}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBench_SessionStart(t *testing.T) {
	f := newBenchFixture(t)
	conn := f.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, conn, clientMessage{Type: "session.start", ClientKey: "acme"})

	started := recv(t, conn)
	if started.Type != "session.started" {
		t.Fatalf("first frame = %q, want session.started", started.Type)
	}
	if !strings.HasPrefix(started.SessionID, "test_") {
		t.Errorf("session id = %q", started.SessionID)
	}

	greeting := recv(t, conn)
	if greeting.Type != "agent.text" {
		t.Fatalf("second frame = %q, want agent.text", greeting.Type)
	}
	if !strings.Contains(greeting.Text, "Carlos") || !strings.Contains(greeting.Text, "Aceros del Norte") {
		t.Errorf("greeting = %q", greeting.Text)
	}

	calls := f.provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("ai connects = %d, want 1", len(calls))
	}
	cfg := calls[0].Cfg
	if !cfg.ManualTurns {
		t.Error("test sessions must disable provider VAD")
	}
	if cfg.InputFormat != "pcm16" || cfg.OutputFormat != "pcm16" {
		t.Errorf("codecs = %q/%q, want pcm16", cfg.InputFormat, cfg.OutputFormat)
	}
	if !strings.Contains(cfg.Instructions, "Aceros del Norte") {
		t.Error("persona instructions missing company name")
	}
}

func TestBench_UnknownClientKey(t *testing.T) {
	f := newBenchFixture(t)
	conn := f.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, conn, clientMessage{Type: "session.start", ClientKey: "ghost"})

	msg := recv(t, conn)
	if msg.Type != "error" {
		t.Fatalf("frame = %q, want error", msg.Type)
	}
	if len(f.provider.Calls()) != 0 {
		t.Error("ai session opened for unknown client")
	}
}

func TestBench_AudioPacing(t *testing.T) {
	f := newBenchFixture(t)
	conn := f.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, conn, clientMessage{Type: "session.start", ClientKey: "acme"})
	recvType(t, conn, "agent.text")

	pcm := []byte{1, 0, 2, 0, 3, 0}
	send(t, conn, clientMessage{Type: "audio", Payload: base64.StdEncoding.EncodeToString(pcm)})

	eventually(t, "audio forwarded", func() bool { return len(f.session.SentAudio()) == 1 })
	if got := f.session.SentAudio()[0]; string(got) != string(pcm) {
		t.Errorf("forwarded = %v, want %v", got, pcm)
	}

	// After the pacing gap the turn is committed and a response requested.
	eventually(t, "commit", func() bool { return f.session.Commits() == 1 })
	eventually(t, "response.create", func() bool { return f.session.Responses() == 1 })
}

func TestBench_PacingResetsPerChunk(t *testing.T) {
	f := newBenchFixture(t)
	conn := f.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, conn, clientMessage{Type: "session.start", ClientKey: "acme"})
	recvType(t, conn, "agent.text")

	// Two chunks in quick succession commit once, not twice.
	payload := base64.StdEncoding.EncodeToString([]byte{1, 0})
	send(t, conn, clientMessage{Type: "audio", Payload: payload})
	send(t, conn, clientMessage{Type: "audio", Payload: payload})

	eventually(t, "commit", func() bool { return f.session.Commits() >= 1 })
	time.Sleep(60 * time.Millisecond)
	if got := f.session.Commits(); got != 1 {
		t.Errorf("commits = %d, want 1", got)
	}
}

func TestBench_AgentAudioIsWAV(t *testing.T) {
	f := newBenchFixture(t)
	conn := f.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, conn, clientMessage{Type: "session.start", ClientKey: "acme"})
	recvType(t, conn, "agent.text")

	f.session.EmitAudio([]byte{1, 2, 3, 4})

	msg := recvType(t, conn, "agent.audio")
	wav, err := base64.StdEncoding.DecodeString(msg.Payload)
	if err != nil {
		t.Fatalf("payload not base64: %v", err)
	}
	if len(wav) != 44+4 {
		t.Fatalf("wav length = %d, want 48", len(wav))
	}
	if string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("payload is not a WAV container")
	}
}

func TestBench_TranscriptFrames(t *testing.T) {
	f := newBenchFixture(t)
	conn := f.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, conn, clientMessage{Type: "session.start", ClientKey: "acme"})
	recvType(t, conn, "agent.text") // greeting

	f.session.EmitLine(realtime.SpeakerUser, "quiero información")
	msg := recvType(t, conn, "caller.text")
	if msg.Text != "quiero información" {
		t.Errorf("caller text = %q", msg.Text)
	}

	f.session.EmitLine(realtime.SpeakerAssistant, "claro, con gusto")
	msg = recvType(t, conn, "agent.text")
	if msg.Text != "claro, con gusto" {
		t.Errorf("agent text = %q", msg.Text)
	}
	if msg.Timestamp.IsZero() {
		t.Error("transcript frame has no timestamp")
	}
}

func TestBench_SessionEnd(t *testing.T) {
	f := newBenchFixture(t)
	conn := f.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, conn, clientMessage{Type: "session.start", ClientKey: "acme"})
	recvType(t, conn, "agent.text")

	send(t, conn, clientMessage{Type: "session.end"})
	msg := recvType(t, conn, "session.ended")
	if msg.Type != "session.ended" {
		t.Fatalf("frame = %q", msg.Type)
	}

	eventually(t, "ai session closed", func() bool { return f.session.Closed() })
}

func TestMemStore_ListNewestFirst(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for _, id := range []string{"test_1", "test_2"} {
		err := s.Save(ctx, &Conversation{
			ClientKey: "acme",
			SessionID: id,
			Transcript: []Message{
				{Role: "agent", Text: "hola"},
			},
		})
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	_ = s.Save(ctx, &Conversation{ClientKey: "other", SessionID: "test_3"})

	got, err := s.List(ctx, "acme")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].SessionID != "test_2" || got[1].SessionID != "test_1" {
		t.Errorf("order = %s, %s", got[0].SessionID, got[1].SessionID)
	}
}
