package call

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vocero-ai/vocero/internal/detect"
	"github.com/vocero-ai/vocero/internal/extract"
	"github.com/vocero-ai/vocero/internal/lead"
	"github.com/vocero-ai/vocero/internal/observe"
)

// Actuator issues control operations against the telephony provider. Calls
// are one-shot and fire-and-forget: failures are logged by the machine, never
// retried, and never block the event path.
type Actuator interface {
	// SendDigits plays DTMF digits into the call.
	SendDigits(ctx context.Context, callID, digits string) error

	// Hangup terminates the call.
	Hangup(ctx context.Context, callID string) error
}

// Hangup scheduling delays after a farewell line. The agent gets an extra
// second so its synthesized goodbye is not cut off mid-word.
const (
	CallerFarewellHangupDelay = 2 * time.Second
	AgentFarewellHangupDelay  = 3 * time.Second
)

// actuatorTimeout bounds each fire-and-forget control call.
const actuatorTimeout = 10 * time.Second

// MachineConfig holds the dependencies of a [Machine].
type MachineConfig struct {
	Registry *Registry
	Actuator Actuator
	Sink     Sink

	// Leads receives a lead built from the captured contact data when a
	// finished call produced any. Optional.
	Leads lead.Store

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// CallerFarewellDelay and AgentFarewellDelay override the hangup
	// scheduling delays. Zero means the package defaults. Used in tests.
	CallerFarewellDelay time.Duration
	AgentFarewellDelay  time.Duration
}

// Machine drives the per-call state transitions. Every newly finalized
// transcript line runs through [Machine.HandleLine], which evaluates the
// detection checks in fixed precedence order — voicemail, IVR menu, human
// presence, farewell — and acts on the first match. The precedence is a
// behavioral contract: a voicemail phrase on a line suppresses every other
// check for that line.
type Machine struct {
	registry *Registry
	actuator Actuator
	sink     Sink
	leads    lead.Store
	metrics  *observe.Metrics

	callerFarewellDelay time.Duration
	agentFarewellDelay  time.Duration
}

// NewMachine creates a Machine with the given dependencies.
func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		registry:            cfg.Registry,
		actuator:            cfg.Actuator,
		sink:                cfg.Sink,
		leads:               cfg.Leads,
		metrics:             cfg.Metrics,
		callerFarewellDelay: cfg.CallerFarewellDelay,
		agentFarewellDelay:  cfg.AgentFarewellDelay,
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	if m.callerFarewellDelay == 0 {
		m.callerFarewellDelay = CallerFarewellHangupDelay
	}
	if m.agentFarewellDelay == 0 {
		m.agentFarewellDelay = AgentFarewellHangupDelay
	}
	return m
}

// HandleLine processes one finalized transcript line from either party:
// appends it to the conversation, runs sticky data extraction, and evaluates
// the detection precedence chain.
func (m *Machine) HandleLine(s *Session, role Role, text string) {
	if text == "" {
		return
	}

	s.AppendTranscript(role, text)
	m.extractInto(s, text)

	// 1. Voicemail — terminal for this line.
	if detect.IsVoicemail(text) {
		s.MarkVoicemail()
		m.countDetection("voicemail")
		if s.EndConversation() {
			s.setStatus(StatusVoicemailEnding)
			slog.Info("voicemail detected, hanging up", "call_id", s.CallID)
			go m.hangup(s.CallID)
		}
		return
	}

	// 2. IVR menu instruction. Status stays STREAMING: the far end is still
	// a machine.
	if action, ok := detect.FindIVRAction(text); ok {
		s.MarkIVR()
		m.countDetection("ivr")
		slog.Info("ivr menu option selected",
			"call_id", s.CallID, "digit", action.Digit, "category", string(action.Category))
		go m.sendDigits(s, action.Digit)
		return
	}

	// 3. Human presence.
	if !s.Flags().HumanDetected && detect.IsHumanPresence(text) {
		s.MarkHuman()
		s.setStatus(StatusHumanConversation)
		m.countDetection("human")
		slog.Info("human detected", "call_id", s.CallID)
		return
	}

	// 4. Farewell, from either party. The first farewell wins the
	// check-and-set; any later farewell line is a no-op.
	if detect.IsFarewell(text) && s.EndConversation() {
		s.setStatus(StatusConversationEnding)
		m.countDetection("farewell")

		delay := m.callerFarewellDelay
		if role == RoleAgent {
			delay = m.agentFarewellDelay
		}
		slog.Info("farewell detected, scheduling hangup",
			"call_id", s.CallID, "by", string(role), "delay", delay)
		m.scheduleHangup(s.CallID, delay)
	}
}

// Finalize ends the session: computes the duration, persists the snapshot
// exactly once, hands captured contact data to the lead store, and removes
// the session from the registry. Safe to invoke from both the stream's stop
// event and the socket close path; the second trigger is a no-op.
func (m *Machine) Finalize(ctx context.Context, s *Session) {
	if !s.markFinalized() {
		return
	}

	rec := s.Snapshot()

	if err := m.sink.Save(ctx, rec); err != nil {
		// The transcript for this call is lost; teardown continues.
		slog.Error("call record persist failed", "call_id", s.CallID, "err", err)
		m.metrics.PersistFailures.Add(ctx, 1)
	}

	m.saveLead(ctx, rec)

	m.registry.Remove(s.CallID)
	m.metrics.ActiveCalls.Add(ctx, -1)
	m.metrics.CallDuration.Record(ctx, time.Since(s.startTime).Seconds(),
		metric.WithAttributes(attribute.String("outcome", rec.Outcome)))

	slog.Info("call finalized",
		"call_id", s.CallID,
		"client_key", s.ClientKey,
		"outcome", rec.Outcome,
		"duration_s", rec.DurationSeconds,
		"captured_fields", len(rec.CapturedData),
	)
}

// extractInto runs every extractor over text and stores first-match-wins
// captures on the session.
func (m *Machine) extractInto(s *Session, text string) {
	for field, value := range extract.All(text) {
		if s.Capture(field, value) {
			slog.Info("captured contact data", "call_id", s.CallID, "field", field)
		}
	}
}

// saveLead turns captured contact data into a lead row. Best-effort.
func (m *Machine) saveLead(ctx context.Context, rec *Record) {
	if m.leads == nil || len(rec.CapturedData) == 0 {
		return
	}
	l := &lead.Lead{
		ClientKey: rec.ClientKey,
		Name:      rec.CapturedData[extract.FieldName],
		Company:   rec.CapturedData[extract.FieldCompany],
		Email:     rec.CapturedData[extract.FieldEmail],
		Phone:     rec.CapturedData[extract.FieldPhone],
		Source:    "ai_call",
	}
	if err := m.leads.Create(ctx, l); err != nil {
		slog.Warn("lead creation failed", "call_id", rec.CallID, "err", err)
	}
}

// scheduleHangup arms the deferred farewell hangup. The timer is not
// cancellable by later events; it only checks that the session is still
// registered before firing, which guards against acting on a torn-down call.
func (m *Machine) scheduleHangup(callID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if m.registry.Get(callID) == nil {
			return
		}
		m.hangup(callID)
	})
}

func (m *Machine) hangup(callID string) {
	ctx, cancel := context.WithTimeout(context.Background(), actuatorTimeout)
	defer cancel()

	if err := m.actuator.Hangup(ctx, callID); err != nil {
		slog.Warn("hangup failed", "call_id", callID, "err", err)
		m.metrics.ActuatorErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("op", "hangup")))
	}
}

func (m *Machine) sendDigits(s *Session, digit string) {
	ctx, cancel := context.WithTimeout(context.Background(), actuatorTimeout)
	defer cancel()

	if err := m.actuator.SendDigits(ctx, s.CallID, digit); err != nil {
		slog.Warn("dtmf send failed", "call_id", s.CallID, "digit", digit, "err", err)
		m.metrics.ActuatorErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("op", "dtmf")))
		return
	}
	s.RecordDTMF(digit)
	m.metrics.DTMFDigitsSent.Add(ctx, 1)
}

func (m *Machine) countDetection(kind string) {
	m.metrics.DetectionEvents.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}
