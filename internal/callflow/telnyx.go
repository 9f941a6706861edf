package callflow

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ghostvoice/voiceos/internal/callsession"
	"github.com/ghostvoice/voiceos/internal/engine"
	"github.com/ghostvoice/voiceos/internal/telephony"
)

// ErrSessionNotFound means an event arrived for a call we cannot place:
// nothing in the store, no client_state to rebuild from, and not enough
// request fields to recreate a session.
var ErrSessionNotFound = errors.New("call session not found")

// TelnyxEnvelope is the webhook body Telnyx POSTs for every call event.
type TelnyxEnvelope struct {
	Data TelnyxEvent `json:"data"`
}

type TelnyxEvent struct {
	EventType               string            `json:"event_type"`
	CallControlID           string            `json:"call_control_id"`
	ClientState             string            `json:"client_state"`
	To                      string            `json:"to"`
	From                    string            `json:"from"`
	MachineDetectionResult  string            `json:"machine_detection_result"`
	Digits                  string            `json:"digits"`
	Reason                  string            `json:"reason"`
	OccurredAt              string            `json:"occurred_at"`
	Recordings              []TelnyxRecording `json:"recordings"`
	Error                   *TelnyxError      `json:"error"`
}

type TelnyxRecording struct {
	URL string `json:"url"`
}

type TelnyxError struct {
	Message string `json:"message"`
}

// TelnyxAdapter translates Telnyx's push model into session updates and
// call-control commands. Telnyx tells us what happened; we answer over a
// separate API with what to do next.
type TelnyxAdapter struct {
	store   callsession.Store
	engine  *engine.Engine
	control telephony.CallController
}

func NewTelnyxAdapter(store callsession.Store, eng *engine.Engine, control telephony.CallController) *TelnyxAdapter {
	return &TelnyxAdapter{store: store, engine: eng, control: control}
}

// HandleEvent routes one webhook event to its handler. Every failure is
// contained here: the carrier gets an error result, never a crash, and a
// handler panic cannot take the webhook endpoint down with it.
func (a *TelnyxAdapter) HandleEvent(ctx context.Context, env TelnyxEnvelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[TELNYX] panic in event handler: %v", r)
			err = fmt.Errorf("event handler panic: %v", r)
		}
	}()

	event := env.Data
	log.Printf("[TELNYX] webhook event: %s (call: %s)", event.EventType, event.CallControlID)

	sess, err := a.resolveSession(ctx, event)
	if err != nil {
		return err
	}

	switch event.EventType {
	case "call.initiated":
		return a.handleInitiated(ctx, sess, event)
	case "call.answered":
		return a.handleAnswered(ctx, sess, event)
	case "call.machine_detection_ended":
		return a.handleMachineDetection(ctx, sess, event)
	case "call.speaking_started":
		return a.handleSpeakingStarted(ctx, sess, event)
	case "call.dtmf_received":
		return a.handleDTMF(ctx, sess, event)
	case "call.hangup":
		return a.handleHangup(ctx, sess, event)
	case "call.failed":
		return a.handleFailed(ctx, sess, event)
	default:
		log.Printf("[TELNYX] unhandled event type: %s", event.EventType)
		return nil
	}
}

// resolveSession finds the session for an event. Store lookup first; a
// cold cache falls back to the client_state blob Telnyx echoes back; a
// call.initiated event can rebuild a minimal session from request fields.
func (a *TelnyxAdapter) resolveSession(ctx context.Context, event TelnyxEvent) (*callsession.CallSession, error) {
	if event.CallControlID == "" {
		return nil, fmt.Errorf("%w: event missing call_control_id", ErrSessionNotFound)
	}

	sess, err := a.store.Get(ctx, event.CallControlID)
	if err != nil {
		log.Printf("[TELNYX] store lookup failed for %s: %v", event.CallControlID, err)
	}
	if sess != nil {
		return sess, nil
	}

	if event.ClientState != "" {
		sess, err = callsession.ParseClientState(event.ClientState, event.CallControlID)
		if err != nil {
			log.Printf("[TELNYX] failed to parse client_state: %v", err)
			return nil, fmt.Errorf("%w: bad client_state", ErrSessionNotFound)
		}
		log.Printf("[TELNYX] session %s rebuilt from client_state", sess.SessionID)
		if err := a.store.Store(ctx, sess); err != nil {
			log.Printf("[TELNYX] failed to persist rebuilt session: %v", err)
		}
		return sess, nil
	}

	if event.EventType == "call.initiated" && (event.To != "" || event.From != "") {
		sess = callsession.New(callsession.Params{
			Carrier:       callsession.CarrierTelnyx,
			CarrierCallID: event.CallControlID,
			ToNumber:      event.To,
			FromNumber:    event.From,
		})
		log.Printf("[TELNYX] session %s recreated from event fields", sess.SessionID)
		if err := a.store.Store(ctx, sess); err != nil {
			log.Printf("[TELNYX] failed to persist recreated session: %v", err)
		}
		return sess, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, event.CallControlID)
}

func (a *TelnyxAdapter) handleInitiated(ctx context.Context, sess *callsession.CallSession, event TelnyxEvent) error {
	if err := sess.AdvanceState(callsession.StateInitiated); err != nil {
		log.Printf("[TELNYX] state advance failed: %v", err)
	}
	sess.AddEvent("call_initiated", map[string]any{"call_control_id": event.CallControlID})
	return a.store.Store(ctx, sess)
}

func (a *TelnyxAdapter) handleAnswered(ctx context.Context, sess *callsession.CallSession, event TelnyxEvent) error {
	if err := sess.AdvanceState(callsession.StateAnswered); err != nil {
		log.Printf("[TELNYX] state advance failed: %v", err)
	}
	sess.AddEvent("call_answered", map[string]any{"call_control_id": event.CallControlID})

	text, audioRef := a.engine.GenerateResponse(ctx, sess, "")
	sess.AddTranscriptEntry(callsession.SpeakerAI, text)

	a.deliver(ctx, sess, text, audioRef)

	if err := sess.AdvanceState(callsession.StateSpeaking); err != nil {
		log.Printf("[TELNYX] state advance failed: %v", err)
	}
	return a.store.Store(ctx, sess)
}

func (a *TelnyxAdapter) handleMachineDetection(ctx context.Context, sess *callsession.CallSession, event TelnyxEvent) error {
	result := event.MachineDetectionResult
	log.Printf("[TELNYX] machine detection: %s", result)
	sess.AddEvent("machine_detection", map[string]any{"result": result})

	switch result {
	case "answered_human":
		return a.handleAnswered(ctx, sess, event)
	case "answered_machine":
		// Leave a short voicemail instead of conversing with the greeting.
		message := a.engine.EndCall(sess, "completed")
		if err := a.control.Speak(ctx, sess.CarrierCallID, message, sess.VoiceConfig.Language, ""); err != nil {
			log.Printf("[TELNYX] voicemail speak failed: %v", err)
		}
		if err := a.control.Hangup(ctx, sess.CarrierCallID); err != nil {
			log.Printf("[TELNYX] hangup failed: %v", err)
		}
		if err := sess.AdvanceState(callsession.StateEnded); err != nil {
			log.Printf("[TELNYX] state advance failed: %v", err)
		}
	default:
		// No answer or detection timeout.
		if err := sess.AdvanceState(callsession.StateEnded); err != nil {
			log.Printf("[TELNYX] state advance failed: %v", err)
		}
	}
	return a.store.Store(ctx, sess)
}

func (a *TelnyxAdapter) handleSpeakingStarted(ctx context.Context, sess *callsession.CallSession, event TelnyxEvent) error {
	if err := sess.AdvanceState(callsession.StateGathering); err != nil {
		log.Printf("[TELNYX] state advance failed: %v", err)
	}
	sess.AddEvent("speaking_started", map[string]any{"call_control_id": event.CallControlID})
	return a.store.Store(ctx, sess)
}

func (a *TelnyxAdapter) handleDTMF(ctx context.Context, sess *callsession.CallSession, event TelnyxEvent) error {
	sess.AddEvent("dtmf_received", map[string]any{"digits": event.Digits})

	text, audioRef := a.engine.HandleDTMF(ctx, sess, event.Digits)
	sess.AddTranscriptEntry(callsession.SpeakerCaller, fmt.Sprintf("[DTMF: %s]", event.Digits))
	sess.AddTranscriptEntry(callsession.SpeakerAI, text)
	sess.IncrementTurn()

	if a.engine.TurnLimitReached(sess) {
		closing := a.engine.EndCall(sess, "completed")
		sess.AddTranscriptEntry(callsession.SpeakerAI, closing)
		if err := a.control.Speak(ctx, sess.CarrierCallID, closing, sess.VoiceConfig.Language, ""); err != nil {
			log.Printf("[TELNYX] closing speak failed: %v", err)
		}
		if err := a.control.Hangup(ctx, sess.CarrierCallID); err != nil {
			log.Printf("[TELNYX] hangup failed: %v", err)
		}
		if err := sess.AdvanceState(callsession.StateEnded); err != nil {
			log.Printf("[TELNYX] state advance failed: %v", err)
		}
		return a.store.Store(ctx, sess)
	}

	a.deliver(ctx, sess, text, audioRef)
	return a.store.Store(ctx, sess)
}

func (a *TelnyxAdapter) handleHangup(ctx context.Context, sess *callsession.CallSession, event TelnyxEvent) error {
	log.Printf("[TELNYX] call hung up: %s (%s)", sess.CarrierCallID, event.Reason)
	if err := sess.AdvanceState(callsession.StateEnded); err != nil {
		log.Printf("[TELNYX] state advance failed: %v", err)
	}
	sess.AddEvent("call_hangup", map[string]any{"reason": event.Reason})
	if len(event.Recordings) > 0 {
		sess.RecordingURL = event.Recordings[0].URL
	}
	return a.store.Store(ctx, sess)
}

func (a *TelnyxAdapter) handleFailed(ctx context.Context, sess *callsession.CallSession, event TelnyxEvent) error {
	message := "Unknown error"
	if event.Error != nil && event.Error.Message != "" {
		message = event.Error.Message
	}
	log.Printf("[TELNYX] call failed: %s - %s", sess.CarrierCallID, message)
	if err := sess.AdvanceState(callsession.StateFailed); err != nil {
		log.Printf("[TELNYX] state advance failed: %v", err)
	}
	sess.AddEvent("call_failed", map[string]any{"error": message})
	return a.store.Store(ctx, sess)
}

// deliver plays synthesized audio when a reference exists, otherwise falls
// back to carrier-side TTS so the caller is never left in silence.
func (a *TelnyxAdapter) deliver(ctx context.Context, sess *callsession.CallSession, text, audioRef string) {
	if audioRef != "" {
		if err := a.control.PlayAudio(ctx, sess.CarrierCallID, audioRef, false); err != nil {
			log.Printf("[TELNYX] play audio failed: %v", err)
		} else {
			return
		}
	}
	if err := a.control.Speak(ctx, sess.CarrierCallID, text, sess.VoiceConfig.Language, ""); err != nil {
		log.Printf("[TELNYX] speak failed: %v", err)
	}
}
