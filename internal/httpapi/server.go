package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghostvoice/voiceos/internal/callflow"
	"github.com/ghostvoice/voiceos/internal/callsession"
	"github.com/ghostvoice/voiceos/internal/config"
	"github.com/ghostvoice/voiceos/internal/engine"
	"github.com/ghostvoice/voiceos/internal/observability"
	"github.com/ghostvoice/voiceos/internal/telephony"
	"github.com/ghostvoice/voiceos/internal/tenant"
)

type Server struct {
	cfg      config.Config
	store    callsession.Store
	tenants  tenant.Loader
	engine   *engine.Engine
	telnyx   *callflow.TelnyxAdapter
	twilio   *callflow.TwilioAdapter
	carriers map[string]telephony.Carrier
	control  telephony.CallController
	metrics  *observability.Metrics
}

func New(
	cfg config.Config,
	store callsession.Store,
	tenants tenant.Loader,
	eng *engine.Engine,
	telnyxAdapter *callflow.TelnyxAdapter,
	twilioAdapter *callflow.TwilioAdapter,
	carriers map[string]telephony.Carrier,
	control telephony.CallController,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		tenants:  tenants,
		engine:   eng,
		telnyx:   telnyxAdapter,
		twilio:   twilioAdapter,
		carriers: carriers,
		control:  control,
		metrics:  metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/calls/initiate", s.handleInitiateCall)
	r.Post("/v1/calls/end/{callID}", s.handleEndCall)
	r.Get("/v1/calls/{callID}", s.handleGetCall)

	r.Post("/v1/webhooks/telnyx", s.handleTelnyxWebhook)
	r.Post("/v1/webhooks/twilio/answer", s.handleTwilioAnswer)
	r.Post("/v1/webhooks/twilio/gather", s.handleTwilioGather)
	r.Post("/v1/webhooks/twilio/status", s.handleTwilioStatus)
	r.Post("/v1/webhooks/twilio/recording", s.handleTwilioRecording)

	r.Post("/v1/voice/synthesize", s.handleSynthesize)
	r.Get("/v1/voice/stream/{sessionID}", s.handleVoiceStream)

	r.Get("/v1/tenants", s.handleListTenants)
	r.Get("/v1/tenants/{id}", s.handleGetTenant)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"carriers": s.carrierNames(),
	})
}

func (s *Server) carrierNames() []string {
	names := make([]string, 0, len(s.carriers))
	for name := range s.carriers {
		names = append(names, name)
	}
	return names
}

// tenantID extracts the caller's tenant from the X-Tenant-Id header.
func tenantID(r *http.Request) string {
	id := r.Header.Get("X-Tenant-Id")
	if id == "" {
		return tenant.DefaultTenantID
	}
	return id
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
