package callflow

import (
	"context"
	"fmt"
	"log"

	"github.com/ghostvoice/voiceos/internal/callsession"
	"github.com/ghostvoice/voiceos/internal/engine"
	"github.com/ghostvoice/voiceos/internal/telephony"
)

// twilioStatusMap translates Twilio call status callbacks into lifecycle
// states. Unknown statuses are ignored.
var twilioStatusMap = map[string]callsession.State{
	"queued":      callsession.StateInitiated,
	"ringing":     callsession.StateRinging,
	"in-progress": callsession.StateAnswered,
	"completed":   callsession.StateEnded,
	"busy":        callsession.StateFailed,
	"failed":      callsession.StateFailed,
	"no-answer":   callsession.StateFailed,
	"canceled":    callsession.StateEnded,
}

// TwilioAdapter answers Twilio's pull model: every webhook response IS the
// next call instruction, rendered as TwiML. There is no separate command
// channel like Telnyx has.
type TwilioAdapter struct {
	store        callsession.Store
	engine       *engine.Engine
	gatherAction string
}

func NewTwilioAdapter(store callsession.Store, eng *engine.Engine, gatherAction string) *TwilioAdapter {
	if gatherAction == "" {
		gatherAction = "/v1/webhooks/twilio/gather"
	}
	return &TwilioAdapter{store: store, engine: eng, gatherAction: gatherAction}
}

// errorTwiML is the fallback document when a handler fails mid-call. It
// must render without the builder so it cannot itself fail.
const errorTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>I encountered an error. Try again later.</Say><Hangup></Hangup></Response>`

const expiredTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>Session expired. Goodbye.</Say><Hangup></Hangup></Response>`

// Answer handles the initial TwiML fetch when a call connects. Outbound
// calls find their session via the session_id query param threaded through
// initiation; inbound calls get a session created on the spot.
func (a *TwilioAdapter) Answer(ctx context.Context, callSID, from, to, sessionID string) string {
	log.Printf("[ANSWER] call answered: %s from %s to %s", callSID, from, to)

	sess, err := a.store.Get(ctx, callSID)
	if err != nil {
		log.Printf("[ANSWER] store lookup failed: %v", err)
	}
	if sess == nil && sessionID != "" {
		// Outbound calls are stored under the placeholder id until the
		// carrier assigns a real one.
		sess, err = a.store.Get(ctx, callsession.PlaceholderCallID)
		if err != nil {
			log.Printf("[ANSWER] placeholder lookup failed: %v", err)
		}
		if sess != nil && sess.SessionID != sessionID {
			sess = nil
		}
		if sess != nil {
			if err := a.store.Delete(ctx, callsession.PlaceholderCallID); err != nil {
				log.Printf("[ANSWER] placeholder cleanup failed: %v", err)
			}
		}
	}
	if sess == nil {
		sess = callsession.New(callsession.Params{
			Carrier:       callsession.CarrierTwilio,
			CarrierCallID: callSID,
			ToNumber:      to,
			FromNumber:    from,
		})
	}
	sess.CarrierCallID = callSID

	if err := sess.AdvanceState(callsession.StateAnswered); err != nil {
		log.Printf("[ANSWER] state advance failed: %v", err)
		return errorTwiML
	}
	sess.AddEvent("call_answered", map[string]any{"call_sid": callSID})

	text, _ := a.engine.GenerateResponse(ctx, sess, "")
	sess.AddTranscriptEntry(callsession.SpeakerAI, text)
	sess.IncrementTurn()

	// The greeting plays as soon as Twilio executes the document.
	if err := sess.AdvanceState(callsession.StateSpeaking); err != nil {
		log.Printf("[ANSWER] state advance failed: %v", err)
	}

	if err := a.store.Store(ctx, sess); err != nil {
		log.Printf("[ANSWER] store failed: %v", err)
	}

	doc, err := telephony.AnswerDocument(text, true, true, 1, 5, a.gatherAction)
	if err != nil {
		log.Printf("[ANSWER] twiml render failed: %v", err)
		return errorTwiML
	}
	log.Printf("[ANSWER] twiml generated for %s", callSID)
	return doc
}

// Gather handles DTMF digits posted back by a <Gather> verb and decides
// whether the conversation continues or closes out.
func (a *TwilioAdapter) Gather(ctx context.Context, callSID, digits string) string {
	log.Printf("[GATHER] dtmf received: %s (call: %s)", digits, callSID)

	sess, err := a.store.Get(ctx, callSID)
	if err != nil {
		log.Printf("[GATHER] store lookup failed: %v", err)
		return errorTwiML
	}
	if sess == nil {
		log.Printf("[GATHER] session not found for %s", callSID)
		return expiredTwiML
	}

	sess.AddEvent("dtmf_received", map[string]any{"digits": digits})

	if err := sess.AdvanceState(callsession.StateResponding); err != nil {
		log.Printf("[GATHER] state advance failed: %v", err)
	}

	text, _ := a.engine.HandleDTMF(ctx, sess, digits)
	sess.AddTranscriptEntry(callsession.SpeakerCaller, fmt.Sprintf("[DTMF: %s]", digits))
	sess.AddTranscriptEntry(callsession.SpeakerAI, text)
	sess.IncrementTurn()

	if a.engine.TurnLimitReached(sess) {
		closing := a.engine.EndCall(sess, "completed")
		sess.AddTranscriptEntry(callsession.SpeakerAI, closing)
		if err := sess.AdvanceState(callsession.StateEnded); err != nil {
			log.Printf("[GATHER] state advance failed: %v", err)
		}
		if err := a.store.Store(ctx, sess); err != nil {
			log.Printf("[GATHER] store failed: %v", err)
		}
		doc, err := telephony.ResponseDocument(closing, "")
		if err != nil {
			return errorTwiML
		}
		return doc
	}

	if err := sess.AdvanceState(callsession.StateSpeaking); err != nil {
		log.Printf("[GATHER] state advance failed: %v", err)
	}
	if err := a.store.Store(ctx, sess); err != nil {
		log.Printf("[GATHER] store failed: %v", err)
	}

	doc, err := telephony.ResponseDocument(text, a.gatherAction)
	if err != nil {
		return errorTwiML
	}
	log.Printf("[GATHER] processed dtmf, continuing conversation")
	return doc
}

// Status handles call progress callbacks. Sessions are created on demand
// because status events for inbound calls can arrive before anything else.
func (a *TwilioAdapter) Status(ctx context.Context, callSID, callStatus string) error {
	log.Printf("[STATUS] call status: %s (%s)", callStatus, callSID)

	sess, err := a.store.Get(ctx, callSID)
	if err != nil {
		return err
	}
	if sess == nil {
		log.Printf("[STATUS] session not found for %s, creating", callSID)
		sess = callsession.New(callsession.Params{
			Carrier:       callsession.CarrierTwilio,
			CarrierCallID: callSID,
		})
	}

	if next, ok := twilioStatusMap[callStatus]; ok {
		if err := sess.AdvanceState(next); err != nil {
			log.Printf("[STATUS] state advance rejected: %v", err)
		} else {
			sess.AddEvent("status_change", map[string]any{"twilio_status": callStatus})
		}
	}

	if err := a.store.Store(ctx, sess); err != nil {
		return err
	}
	log.Printf("[STATUS] session state now %s", sess.State)
	return nil
}

// Recording captures the recording URL callback. A missing session is not
// an error; the recording just has nowhere to land.
func (a *TwilioAdapter) Recording(ctx context.Context, callSID, recordingURL string) error {
	log.Printf("[RECORDING] recording received for %s", callSID)

	sess, err := a.store.Get(ctx, callSID)
	if err != nil {
		return err
	}
	if sess == nil {
		log.Printf("[RECORDING] session not found for %s", callSID)
		return nil
	}

	sess.RecordingURL = recordingURL
	sess.AddEvent("recording_available", map[string]any{"url": recordingURL})
	return a.store.Store(ctx, sess)
}
