package callsession

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// State is a call lifecycle state.
type State string

const (
	StateInitiated  State = "initiated"
	StateRinging    State = "ringing"
	StateAnswered   State = "answered"
	StateSpeaking   State = "speaking"
	StateGathering  State = "gathering"
	StateResponding State = "responding"
	StateEnded      State = "ended"
	StateFailed     State = "failed"
)

// PlaceholderCallID marks a session whose carrier call id is not yet assigned.
const PlaceholderCallID = "pending"

const (
	CarrierTelnyx = "telnyx"
	CarrierTwilio = "twilio"
)

const (
	SpeakerCaller = "caller"
	SpeakerAI     = "ai"
)

var (
	ErrTerminalState     = errors.New("call session is in a terminal state")
	ErrInvalidTransition = errors.New("invalid call state transition")
)

// transitions encodes the lifecycle graph. ENDED and FAILED have no exits.
var transitions = map[State][]State{
	StateInitiated:  {StateRinging, StateAnswered, StateEnded, StateFailed},
	StateRinging:    {StateAnswered, StateEnded, StateFailed},
	StateAnswered:   {StateSpeaking, StateGathering, StateEnded, StateFailed},
	StateSpeaking:   {StateGathering, StateResponding, StateEnded, StateFailed},
	StateGathering:  {StateSpeaking, StateResponding, StateEnded, StateFailed},
	StateResponding: {StateSpeaking, StateGathering, StateEnded, StateFailed},
	StateEnded:      {},
	StateFailed:     {},
}

// Terminal reports whether s permits no further transitions.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

func (s State) canAdvanceTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// VoiceConfig selects the synthesis voice for a call.
type VoiceConfig struct {
	VoiceID   string `json:"voice_id"`
	VoiceType string `json:"voice_type"`
	Language  string `json:"language"`
}

// AIConfig drives the conversation engine for a call.
type AIConfig struct {
	Prompt          string `json:"prompt"`
	PersonalityMode string `json:"personality_mode"`
	MaxTurns        int    `json:"max_turns"`
}

// TranscriptEntry is one utterance in the call transcript.
type TranscriptEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Turn      int       `json:"turn"`
}

// EventEntry is one carrier or engine event logged against the call.
type EventEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Turn      int            `json:"turn"`
}

// Metrics accumulates per-call quality counters.
type Metrics struct {
	DurationSeconds   int     `json:"duration_seconds"`
	SilenceCount      int     `json:"silence_count"`
	InterruptionCount int     `json:"interruption_count"`
	Sentiment         *string `json:"sentiment"`
}

// CallSession is the unified call model for both carriers. SessionID is
// process-generated and immutable; CarrierCallID is the external lookup key
// and immutable once it is no longer the placeholder.
type CallSession struct {
	SessionID     string            `json:"session_id"`
	TenantID      string            `json:"tenant_id"`
	Carrier       string            `json:"provider"`
	CarrierCallID string            `json:"provider_call_id"`
	ToNumber      string            `json:"to_number"`
	FromNumber    string            `json:"from_number"`
	VoiceConfig   VoiceConfig       `json:"voice_config"`
	AIConfig      AIConfig          `json:"ai_config"`
	LeadData      map[string]any    `json:"lead_data"`
	CallbackURLs  map[string]string `json:"callback_urls"`
	State         State             `json:"state"`
	TurnCount     int               `json:"turn_count"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	EndedAt       *time.Time        `json:"ended_at"`
	Transcript    []TranscriptEntry `json:"transcript"`
	Events        []EventEntry      `json:"events"`
	RecordingURL  string            `json:"recording_url"`
	Metrics       Metrics           `json:"metrics"`
}

// Params configures New. Zero-value fields get defaults.
type Params struct {
	TenantID      string
	Carrier       string
	CarrierCallID string
	ToNumber      string
	FromNumber    string
	VoiceConfig   *VoiceConfig
	AIConfig      *AIConfig
	LeadData      map[string]any
	CallbackURLs  map[string]string
}

func New(p Params) *CallSession {
	now := time.Now().UTC()
	s := &CallSession{
		SessionID:     uuid.NewString(),
		TenantID:      p.TenantID,
		Carrier:       p.Carrier,
		CarrierCallID: p.CarrierCallID,
		ToNumber:      p.ToNumber,
		FromNumber:    p.FromNumber,
		VoiceConfig: VoiceConfig{
			VoiceID:   "default",
			VoiceType: "primary",
			Language:  "en-US",
		},
		AIConfig: AIConfig{
			Prompt:          "Hello, this is an AI assistant.",
			PersonalityMode: "professional",
			MaxTurns:        10,
		},
		LeadData:     map[string]any{},
		CallbackURLs: map[string]string{},
		State:        StateInitiated,
		CreatedAt:    now,
		UpdatedAt:    now,
		Transcript:   []TranscriptEntry{},
		Events:       []EventEntry{},
	}
	if p.TenantID == "" {
		s.TenantID = "default"
	}
	if p.CarrierCallID == "" {
		s.CarrierCallID = PlaceholderCallID
	}
	if p.VoiceConfig != nil {
		s.VoiceConfig = *p.VoiceConfig
	}
	if p.AIConfig != nil {
		s.AIConfig = *p.AIConfig
	}
	if p.LeadData != nil {
		s.LeadData = p.LeadData
	}
	if p.CallbackURLs != nil {
		s.CallbackURLs = p.CallbackURLs
	}
	return s
}

// AdvanceState moves the session along the lifecycle graph. Re-entering the
// current state is a no-op because carriers repeat status callbacks.
func (s *CallSession) AdvanceState(next State) error {
	if s.State == next {
		return nil
	}
	if s.State.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrTerminalState, s.State, next)
	}
	if !s.State.canAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, next)
	}
	log.Printf("[SESSION] %s: %s -> %s", s.SessionID, s.State, next)
	s.State = next
	s.UpdatedAt = time.Now().UTC()
	if next.Terminal() && s.EndedAt == nil {
		ended := s.UpdatedAt
		s.EndedAt = &ended
	}
	return nil
}

// IncrementTurn moves to the next conversation turn.
func (s *CallSession) IncrementTurn() {
	s.TurnCount++
}

// AddTranscriptEntry appends an utterance. The transcript is append-only.
func (s *CallSession) AddTranscriptEntry(speaker, text string) {
	s.Transcript = append(s.Transcript, TranscriptEntry{
		Timestamp: time.Now().UTC(),
		Speaker:   speaker,
		Text:      text,
		Turn:      s.TurnCount,
	})
}

// AddEvent appends a call event. The event log is append-only.
func (s *CallSession) AddEvent(eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	s.Events = append(s.Events, EventEntry{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Data:      data,
		Turn:      s.TurnCount,
	})
}

// Marshal serializes the session to its store representation.
func (s *CallSession) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal reconstructs a session from its store representation.
func Unmarshal(data []byte) (*CallSession, error) {
	var s CallSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode call session: %w", err)
	}
	return &s, nil
}

// ClientState is the minimal snapshot embedded in Telnyx commands so a
// session can be rebuilt when an event arrives with no store record.
type ClientState struct {
	TenantID     string            `json:"tenant_id"`
	SessionID    string            `json:"session_id"`
	ToNumber     string            `json:"to_number"`
	FromNumber   string            `json:"from_number"`
	VoiceConfig  VoiceConfig       `json:"voice_config"`
	AIConfig     AIConfig          `json:"ai_config"`
	LeadData     map[string]any    `json:"lead_data,omitempty"`
	CallbackURLs map[string]string `json:"callback_urls,omitempty"`
}

// EncodeClientState packs the session snapshot as base64 JSON.
func EncodeClientState(s *CallSession) (string, error) {
	cs := ClientState{
		TenantID:     s.TenantID,
		SessionID:    s.SessionID,
		ToNumber:     s.ToNumber,
		FromNumber:   s.FromNumber,
		VoiceConfig:  s.VoiceConfig,
		AIConfig:     s.AIConfig,
		LeadData:     s.LeadData,
		CallbackURLs: s.CallbackURLs,
	}
	raw, err := json.Marshal(cs)
	if err != nil {
		return "", fmt.Errorf("encode client state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ParseClientState rebuilds a minimal session from a base64 client_state blob.
func ParseClientState(encoded, carrierCallID string) (*CallSession, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode client state: %w", err)
	}
	var cs ClientState
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("parse client state: %w", err)
	}

	p := Params{
		TenantID:      cs.TenantID,
		Carrier:       CarrierTelnyx,
		CarrierCallID: carrierCallID,
		ToNumber:      cs.ToNumber,
		FromNumber:    cs.FromNumber,
		LeadData:      cs.LeadData,
		CallbackURLs:  cs.CallbackURLs,
	}
	// Blobs from older builds may omit configs; keep the defaults then.
	if cs.VoiceConfig != (VoiceConfig{}) {
		p.VoiceConfig = &cs.VoiceConfig
	}
	if cs.AIConfig != (AIConfig{}) {
		p.AIConfig = &cs.AIConfig
	}
	s := New(p)
	if cs.SessionID != "" {
		s.SessionID = cs.SessionID
	}
	return s, nil
}
