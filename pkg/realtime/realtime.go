// Package realtime defines the Provider interface for realtime voice AI
// backends.
//
// A realtime provider wraps a stateful speech-to-speech service: raw call
// audio goes in, synthesised agent speech and finalized transcripts come
// out, over a single long-lived session. The central abstraction is
// SessionHandle, a bidirectional multiplexed handle whose audio and
// transcript outputs are channel-based so the telephony hot path never
// blocks on the consumer.
//
// All implementations must be safe for concurrent use.
package realtime

import (
	"context"
	"time"
)

// Speaker identifies which party a transcript line belongs to, in provider
// terms: the user is the called party, the assistant is the AI agent.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// TranscriptLine is one finalized utterance recognised or generated by the
// provider. Partial (delta) transcripts are never surfaced; a line is
// emitted only when the provider marks the utterance done.
type TranscriptLine struct {
	Speaker   Speaker
	Text      string
	Timestamp time.Time
}

// SessionConfig is the initial configuration for a new realtime session.
type SessionConfig struct {
	// Voice selects the synthesised voice. Empty means the provider default.
	Voice string

	// Instructions is the system-level prompt defining the agent persona.
	Instructions string

	// InputFormat and OutputFormat name the audio codec on each direction,
	// e.g. "g711_ulaw" for telephony or "pcm16" for the test bench. Empty
	// means "pcm16".
	InputFormat  string
	OutputFormat string

	// ManualTurns disables provider-side voice activity detection. The
	// caller then drives turn boundaries explicitly via
	// [SessionHandle.Commit] and [SessionHandle.CreateResponse]. Live phone
	// calls leave this false; the test bench sets it.
	ManualTurns bool
}

// SessionHandle represents an open realtime session.
//
// Callers must call Close when the session is no longer needed and must
// drain Audio and Transcripts promptly: backpressure on either stalls the
// provider's receive loop.
type SessionHandle interface {
	// SendAudio delivers one raw audio chunk in the session's input format.
	// Returns an error if the session is closed or the write fails.
	SendAudio(chunk []byte) error

	// Commit marks the end of the current input turn. Only meaningful when
	// the session was opened with ManualTurns.
	Commit() error

	// CreateResponse asks the model to respond to the committed input. Only
	// meaningful when the session was opened with ManualTurns.
	CreateResponse() error

	// Audio emits synthesised agent speech in the session's output format.
	// Closed when the session ends; check Err afterwards.
	Audio() <-chan []byte

	// Transcripts emits finalized utterances from both parties. Closed when
	// the session ends.
	Transcripts() <-chan TranscriptLine

	// Err returns the error that terminated the session prematurely, or nil
	// after a clean shutdown.
	Err() error

	// OnError registers a handler for non-fatal provider error events.
	// Calling it again replaces the handler; nil clears it.
	OnError(handler func(error))

	// Close terminates the session and closes the Audio and Transcripts
	// channels. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime voice AI backend. The
// gateway opens one session per live phone call.
type Provider interface {
	// Connect establishes a new session. The returned handle accepts audio
	// immediately. The caller owns the handle and must Close it.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}
