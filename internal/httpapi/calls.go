package httpapi

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ghostvoice/voiceos/internal/callsession"
	"github.com/ghostvoice/voiceos/internal/telephony"
)

type initiateCallRequest struct {
	ToNumber          string                   `json:"to_number"`
	FromNumber        string                   `json:"from_number"`
	Provider          string                   `json:"provider"`
	Script            string                   `json:"script"`
	VoiceConfig       *callsession.VoiceConfig `json:"voice_config"`
	LeadData          map[string]any           `json:"lead_data"`
	ConnectionID      string                   `json:"connection_id"`
	StatusCallbackURL string                   `json:"status_callback_url"`
}

type initiateCallResponse struct {
	CallID     string `json:"call_id"`
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	Provider   string `json:"provider"`
	ToNumber   string `json:"to_number"`
	FromNumber string `json:"from_number"`
}

func (s *Server) handleInitiateCall(w http.ResponseWriter, r *http.Request) {
	var req initiateCallRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.ToNumber == "" || req.FromNumber == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "to_number and from_number are required")
		return
	}

	carrierName := strings.ToLower(req.Provider)
	carrier, ok := s.carriers[carrierName]
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_provider", "Invalid provider. Must be 'telnyx' or 'twilio'")
		return
	}

	tid := tenantID(r)
	if _, err := s.tenants.Load(r.Context(), tid); err != nil {
		respondError(w, http.StatusInternalServerError, "tenant_error", err.Error())
		return
	}
	log.Printf("[INITIATE] call from %s to %s (tenant: %s, carrier: %s)", req.FromNumber, req.ToNumber, tid, carrierName)

	script := req.Script
	if script == "" {
		script = "Hello, this is an AI assistant."
	}
	sess := callsession.New(callsession.Params{
		TenantID:    tid,
		Carrier:     carrierName,
		ToNumber:    req.ToNumber,
		FromNumber:  req.FromNumber,
		VoiceConfig: req.VoiceConfig,
		AIConfig: &callsession.AIConfig{
			Prompt:          script,
			PersonalityMode: "professional",
			MaxTurns:        10,
		},
		LeadData: req.LeadData,
		CallbackURLs: map[string]string{
			"status_callback": req.StatusCallbackURL,
		},
	})

	initReq := telephony.InitiateRequest{
		To:        req.ToNumber,
		From:      req.FromNumber,
		SessionID: sess.SessionID,
	}
	switch carrierName {
	case callsession.CarrierTelnyx:
		connectionID := req.ConnectionID
		if connectionID == "" {
			connectionID = s.cfg.DefaultConnectionID
		}
		if connectionID == "" {
			respondError(w, http.StatusBadRequest, "bad_request", "connection_id required for Telnyx calls")
			return
		}
		clientState, err := callsession.EncodeClientState(sess)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		initReq.ConnectionID = connectionID
		initReq.ClientState = clientState
		initReq.WebhookURL = s.cfg.PublicBaseURL + "/v1/webhooks/telnyx"
	case callsession.CarrierTwilio:
		initReq.TwiMLURL = s.cfg.PublicBaseURL + "/v1/webhooks/twilio/answer"
		initReq.StatusURL = req.StatusCallbackURL
		if initReq.StatusURL == "" {
			initReq.StatusURL = s.cfg.PublicBaseURL + "/v1/webhooks/twilio/status"
		}
	}

	// Twilio fetches the answer TwiML as soon as the call connects, which
	// can beat the re-keyed Store below. Park the session under the
	// placeholder id first so the answer handler can adopt it by session
	// id instead of creating a bare default session.
	if carrierName == callsession.CarrierTwilio {
		sess.CarrierCallID = callsession.PlaceholderCallID
		if err := s.store.Store(r.Context(), sess); err != nil {
			respondError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
	}

	result, err := carrier.InitiateCall(r.Context(), initReq)
	if err != nil {
		// A failed initiation leaves no session behind.
		if carrierName == callsession.CarrierTwilio {
			if derr := s.store.Delete(r.Context(), callsession.PlaceholderCallID); derr != nil {
				log.Printf("[INITIATE] placeholder cleanup failed: %v", derr)
			}
		}
		log.Printf("[INITIATE] carrier rejected call: %v", err)
		respondError(w, http.StatusInternalServerError, "initiation_failed", "Call initiation failed: "+err.Error())
		return
	}

	sess.CarrierCallID = result.CallID
	adopted := false
	if carrierName == callsession.CarrierTwilio {
		// The answer webhook may already have adopted the placeholder and
		// advanced the session; re-storing here would roll it back.
		existing, gerr := s.store.Get(r.Context(), result.CallID)
		if gerr != nil {
			log.Printf("[INITIATE] store lookup failed: %v", gerr)
		}
		adopted = existing != nil && existing.SessionID == sess.SessionID
	}
	if !adopted {
		if err := s.store.Store(r.Context(), sess); err != nil {
			respondError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
	}
	if carrierName == callsession.CarrierTwilio {
		if err := s.store.Delete(r.Context(), callsession.PlaceholderCallID); err != nil {
			log.Printf("[INITIATE] placeholder cleanup failed: %v", err)
		}
	}

	if s.metrics != nil {
		s.metrics.ActiveCalls.Inc()
		s.metrics.CallEvents.WithLabelValues(carrierName, "initiated").Inc()
	}
	log.Printf("[INITIATE] call session created: %s (call: %s)", sess.SessionID, sess.CarrierCallID)

	respondJSON(w, http.StatusOK, initiateCallResponse{
		CallID:     sess.CarrierCallID,
		SessionID:  sess.SessionID,
		Status:     "initiated",
		Provider:   carrierName,
		ToNumber:   req.ToNumber,
		FromNumber: req.FromNumber,
	})
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	sess, err := s.store.Get(r.Context(), callID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "not_found", "Call session not found")
		return
	}
	if sess.TenantID != tenantID(r) {
		respondError(w, http.StatusForbidden, "forbidden", "Unauthorized")
		return
	}

	if sess.Carrier == callsession.CarrierTelnyx && s.control != nil {
		if err := s.control.Hangup(r.Context(), sess.CarrierCallID); err != nil {
			log.Printf("[END] telnyx hangup failed: %v", err)
		}
	} else if sess.Carrier == callsession.CarrierTwilio {
		// Twilio calls end through the TwiML returned on the next webhook.
		log.Printf("[END] twilio call %s ends via twiml", callID)
	}

	if err := sess.AdvanceState(callsession.StateEnded); err != nil {
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
		return
	}
	if err := s.store.Store(r.Context(), sess); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.ActiveCalls.Dec()
		s.metrics.CallEvents.WithLabelValues(sess.Carrier, "ended").Inc()
	}
	log.Printf("[END] call ended: %s", callID)

	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ended",
		"provider_call_id": callID,
	})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	sess, err := s.store.Get(r.Context(), callID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "not_found", "Call session not found")
		return
	}
	if sess.TenantID != tenantID(r) {
		respondError(w, http.StatusForbidden, "forbidden", "Unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, sess)
}
