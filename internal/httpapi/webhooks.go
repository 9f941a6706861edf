package httpapi

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/ghostvoice/voiceos/internal/callflow"
	"github.com/ghostvoice/voiceos/internal/webhook"
)

// maxWebhookBody bounds carrier webhook payloads.
const maxWebhookBody = 1 << 20

// handleTelnyxWebhook is the single push endpoint for all Telnyx call
// events. Telnyx retries on non-2xx, so processing failures are reported
// in the body of a 200 rather than the status code.
func (s *Server) handleTelnyxWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "read error"})
		return
	}

	if s.cfg.EnforceSignatures {
		signature := r.Header.Get("Telnyx-Signature")
		if !webhook.VerifyTelnyx(s.cfg.TelnyxAPIKey, body, signature) {
			log.Printf("[TELNYX] signature verification failed")
			if s.metrics != nil {
				s.metrics.SignatureFailures.WithLabelValues("telnyx").Inc()
			}
			respondJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "invalid signature"})
			return
		}
	}

	var env callflow.TelnyxEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Printf("[TELNYX] json parse error: %v", err)
		respondJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "Invalid JSON"})
		return
	}

	if err := s.telnyx.HandleEvent(r.Context(), env); err != nil {
		if s.metrics != nil {
			s.metrics.WebhookRequests.WithLabelValues("telnyx", "error").Inc()
		}
		respondJSON(w, http.StatusOK, map[string]any{"status": "error", "message": err.Error()})
		return
	}

	if s.metrics != nil {
		s.metrics.WebhookRequests.WithLabelValues("telnyx", "ok").Inc()
		s.metrics.CallEvents.WithLabelValues("telnyx", env.Data.EventType).Inc()
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// verifyTwilioRequest checks the X-Twilio-Signature header against the
// public URL of this endpoint plus the posted form fields.
func (s *Server) verifyTwilioRequest(r *http.Request) bool {
	if !s.cfg.EnforceSignatures {
		return true
	}
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	requestURL := s.cfg.PublicBaseURL + r.URL.RequestURI()
	return webhook.VerifyTwilio(s.cfg.TwilioAuthToken, requestURL, params, r.Header.Get("X-Twilio-Signature"))
}

func (s *Server) rejectTwilio(w http.ResponseWriter) {
	log.Printf("[TWILIO] signature verification failed")
	if s.metrics != nil {
		s.metrics.SignatureFailures.WithLabelValues("twilio").Inc()
	}
	respondError(w, http.StatusForbidden, "forbidden", "signature verification failed")
}

func (s *Server) handleTwilioAnswer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid form body")
		return
	}
	if !s.verifyTwilioRequest(r) {
		s.rejectTwilio(w)
		return
	}

	callSID := r.PostForm.Get("CallSid")
	if callSID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "CallSid is required")
		return
	}

	doc := s.twilio.Answer(r.Context(),
		callSID,
		r.PostForm.Get("From"),
		r.PostForm.Get("To"),
		r.URL.Query().Get("session_id"),
	)
	if s.metrics != nil {
		s.metrics.WebhookRequests.WithLabelValues("twilio", "ok").Inc()
		s.metrics.CallEvents.WithLabelValues("twilio", "answered").Inc()
	}
	respondTwiML(w, doc)
}

func (s *Server) handleTwilioGather(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid form body")
		return
	}
	if !s.verifyTwilioRequest(r) {
		s.rejectTwilio(w)
		return
	}

	callSID := r.PostForm.Get("CallSid")
	if callSID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "CallSid is required")
		return
	}

	doc := s.twilio.Gather(r.Context(), callSID, r.PostForm.Get("Digits"))
	if s.metrics != nil {
		s.metrics.WebhookRequests.WithLabelValues("twilio", "ok").Inc()
		s.metrics.CallEvents.WithLabelValues("twilio", "dtmf").Inc()
	}
	respondTwiML(w, doc)
}

func (s *Server) handleTwilioStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid form body")
		return
	}
	if !s.verifyTwilioRequest(r) {
		s.rejectTwilio(w)
		return
	}

	callSID := r.PostForm.Get("CallSid")
	status := r.PostForm.Get("CallStatus")
	if callSID == "" || status == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "CallSid and CallStatus are required")
		return
	}

	if err := s.twilio.Status(r.Context(), callSID, status); err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"status": "error", "message": err.Error()})
		return
	}
	if s.metrics != nil {
		s.metrics.CallEvents.WithLabelValues("twilio", "status_"+status).Inc()
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleTwilioRecording(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid form body")
		return
	}
	if !s.verifyTwilioRequest(r) {
		s.rejectTwilio(w)
		return
	}

	callSID := r.PostForm.Get("CallSid")
	if callSID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "CallSid is required")
		return
	}

	if err := s.twilio.Recording(r.Context(), callSID, r.PostForm.Get("RecordingUrl")); err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"status": "error", "message": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
