// Package mock provides test doubles for the realtime package interfaces.
//
// Use Provider to verify Connect calls and hand out controlled sessions.
// Use Session to drive the audio/transcript streams from a test and inspect
// what the code under test sent.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
//	sess.EmitLine(realtime.SpeakerUser, "bueno")
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocero-ai/vocero/pkg/realtime"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	Ctx context.Context
	Cfg realtime.SessionConfig
}

// Provider is a mock implementation of realtime.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the handle returned by Connect. If nil, Connect returns a
	// fresh [Session].
	Session realtime.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

var _ realtime.Provider = (*Provider)(nil)

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg realtime.SessionConfig) (realtime.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Calls returns a copy of the recorded Connect calls.
func (p *Provider) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConnectCall, len(p.ConnectCalls))
	copy(out, p.ConnectCalls)
	return out
}

// Session is a mock implementation of realtime.SessionHandle. Tests push
// model output with EmitAudio/EmitLine and inspect input with SentAudio.
type Session struct {
	mu sync.Mutex

	audioCh     chan []byte
	transcripts chan realtime.TranscriptLine

	sentAudio [][]byte
	commits   int
	responses int
	closed    bool

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// ErrVal is returned by Err.
	ErrVal error

	errorHandler func(error)
	closeOnce    sync.Once
}

var _ realtime.SessionHandle = (*Session)(nil)

// NewSession returns a Session with buffered channels.
func NewSession() *Session {
	return &Session{
		audioCh:     make(chan []byte, 64),
		transcripts: make(chan realtime.TranscriptLine, 16),
	}
}

// EmitAudio simulates synthesised model audio arriving.
func (s *Session) EmitAudio(chunk []byte) {
	s.audioCh <- chunk
}

// EmitLine simulates a finalized transcript line arriving.
func (s *Session) EmitLine(speaker realtime.Speaker, text string) {
	s.transcripts <- realtime.TranscriptLine{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// EmitError invokes the registered OnError handler, if any.
func (s *Session) EmitError(err error) {
	s.mu.Lock()
	h := s.errorHandler
	s.mu.Unlock()
	if h != nil {
		h(err)
	}
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock: session closed")
	}
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.sentAudio = append(s.sentAudio, c)
	return nil
}

// Commit counts the call.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return nil
}

// CreateResponse counts the call.
func (s *Session) CreateResponse() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses++
	return nil
}

// Audio implements realtime.SessionHandle.
func (s *Session) Audio() <-chan []byte { return s.audioCh }

// Transcripts implements realtime.SessionHandle.
func (s *Session) Transcripts() <-chan realtime.TranscriptLine { return s.transcripts }

// Err returns ErrVal.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// OnError stores the handler for EmitError.
func (s *Session) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

// Close closes both output channels. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() {
		close(s.audioCh)
		close(s.transcripts)
	})
	return nil
}

// SentAudio returns a copy of every chunk passed to SendAudio.
func (s *Session) SentAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sentAudio))
	copy(out, s.sentAudio)
	return out
}

// Commits returns how many times Commit was called.
func (s *Session) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Responses returns how many times CreateResponse was called.
func (s *Session) Responses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responses
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
