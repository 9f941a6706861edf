package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghostvoice/voiceos/internal/provider"
	"github.com/ghostvoice/voiceos/internal/tenant"
)

type synthesizeRequest struct {
	Text      string `json:"text"`
	VoiceID   string `json:"voice_id"`
	VoiceType string `json:"voice_type"`
	Language  string `json:"language"`
}

// handleSynthesize renders tenant-scoped speech and returns raw audio.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "text is required")
		return
	}

	result, err := s.engine.Synthesize(r.Context(), tenantID(r), provider.SynthesizeRequest{
		Text:      req.Text,
		VoiceID:   req.VoiceID,
		VoiceType: req.VoiceType,
		Language:  req.Language,
	})
	if err != nil {
		log.Printf("[SYNTHESIZE] failed: %v", err)
		if s.metrics != nil {
			s.metrics.ProviderErrors.WithLabelValues(s.cfg.TTSProvider, "tts").Inc()
		}
		respondError(w, http.StatusBadGateway, "synthesis_failed", err.Error())
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

// handleVoiceStream serves the most recent synthesized utterance for a
// session. Carriers fetch this URL to play audio into the call.
func (s *Server) handleVoiceStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	audio, contentType, ok := s.engine.Audio(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "no audio for session")
		return
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	ids, err := s.tenants.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "tenant_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tenants": ids})
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cfg, err := s.tenants.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "tenant not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "tenant_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}
