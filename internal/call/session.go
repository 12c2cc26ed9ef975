// Package call owns the per-call state: the CallSession, the registry that
// binds the telephony socket to the AI socket, the state machine that
// classifies what is happening on the line, and the persistence sink the
// finished session is handed to.
package call

import (
	"sync"
	"time"

	"github.com/vocero-ai/vocero/internal/profile"
)

// Status is the lifecycle state of a call session.
type Status string

const (
	StatusStreaming          Status = "STREAMING"
	StatusVoicemailEnding    Status = "VOICEMAIL_ENDING"
	StatusHumanConversation  Status = "HUMAN_CONVERSATION"
	StatusConversationEnding Status = "CONVERSATION_ENDING"
	StatusEnded              Status = "ENDED"
)

// Role identifies which party spoke a transcript line.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// TranscriptEntry is one finalized utterance. Insertion order is the
// conversation.
type TranscriptEntry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Flags are the monotonic detection flags of a session. Once set they are
// never reset.
type Flags struct {
	VoicemailDetected bool `json:"voicemail_detected"`
	HumanDetected     bool `json:"human_detected"`
	IVRDetected       bool `json:"ivr_detected"`
	ConversationEnded bool `json:"conversation_ended"`
}

// Session is the state of one active call. It is created by the gateway
// adapter on the inbound webhook and destroyed when the media stream stops
// or its socket closes. All methods are safe for concurrent use.
type Session struct {
	// CallID is the opaque provider call identifier, unique per live call.
	CallID string

	// ClientKey selects the persona profile.
	ClientKey string

	// Profile is the immutable persona snapshot loaded at call creation.
	Profile *profile.Profile

	mu         sync.Mutex
	streamID   string
	status     Status
	startTime  time.Time
	transcript []TranscriptEntry
	captured   map[string]string
	flags      Flags
	dtmfSent   []string
	finalized  bool
}

// NewSession creates a session in [StatusStreaming] with the clock started.
func NewSession(callID, clientKey string, p *profile.Profile) *Session {
	return &Session{
		CallID:    callID,
		ClientKey: clientKey,
		Profile:   p,
		status:    StatusStreaming,
		startTime: time.Now().UTC(),
	}
}

// SetStreamID stores the stream identifier assigned when the media stream's
// start event arrives.
func (s *Session) SetStreamID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamID = id
}

// StreamID returns the stream identifier, or "" before the start event.
func (s *Session) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamID
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// StartTime returns when the session was created.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// AppendTranscript records a finalized utterance.
func (s *Session) AppendTranscript(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, TranscriptEntry{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

// Capture stores a extracted field value. Fields are sticky: the first
// captured value wins and later values for the same field are discarded.
// Reports whether the value was stored.
func (s *Session) Capture(field, value string) bool {
	if value == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.captured == nil {
		s.captured = make(map[string]string, 4)
	}
	if _, exists := s.captured[field]; exists {
		return false
	}
	s.captured[field] = value
	return true
}

// CapturedData returns a copy of the captured field map.
func (s *Session) CapturedData() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.captured))
	for k, v := range s.captured {
		out[k] = v
	}
	return out
}

// Flags returns a snapshot of the detection flags.
func (s *Session) Flags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// MarkVoicemail sets the voicemail flag.
func (s *Session) MarkVoicemail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.VoicemailDetected = true
}

// MarkHuman sets the human flag. Reports whether this call was the first to
// set it.
func (s *Session) MarkHuman() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags.HumanDetected {
		return false
	}
	s.flags.HumanDetected = true
	return true
}

// MarkIVR sets the IVR flag.
func (s *Session) MarkIVR() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.IVRDetected = true
}

// EndConversation atomically check-and-sets the conversation-ended flag.
// Exactly one caller observes true; every hangup-scheduling path must gate
// on it so independently triggered farewell/voicemail detections cannot
// race into a double hangup.
func (s *Session) EndConversation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags.ConversationEnded {
		return false
	}
	s.flags.ConversationEnded = true
	return true
}

// RecordDTMF appends a digit to the audit trail of digits actually sent.
func (s *Session) RecordDTMF(digit string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dtmfSent = append(s.dtmfSent, digit)
}

// markFinalized flips the session into [StatusEnded]. Reports whether this
// call was the first finalization; later calls are no-ops.
func (s *Session) markFinalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return false
	}
	s.finalized = true
	s.status = StatusEnded
	return true
}

// Snapshot assembles the persistence record for this session.
func (s *Session) Snapshot() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcript := make([]TranscriptEntry, len(s.transcript))
	copy(transcript, s.transcript)
	captured := make(map[string]string, len(s.captured))
	for k, v := range s.captured {
		captured[k] = v
	}
	dtmf := make([]string, len(s.dtmfSent))
	copy(dtmf, s.dtmfSent)

	return &Record{
		CallID:          s.CallID,
		ClientKey:       s.ClientKey,
		Transcript:      transcript,
		CapturedData:    captured,
		Flags:           s.flags,
		DTMFSent:        dtmf,
		Outcome:         outcome(s.flags),
		DurationSeconds: int(time.Since(s.startTime) / time.Second),
		StartedAt:       s.startTime,
	}
}

// outcome classifies how the call went for the dashboard: voicemail beats
// completed beats failed.
func outcome(f Flags) string {
	switch {
	case f.VoicemailDetected:
		return "voicemail"
	case f.HumanDetected:
		return "completed"
	default:
		return "failed"
	}
}
