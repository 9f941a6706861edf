package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ghostvoice/voiceos/internal/callflow"
	"github.com/ghostvoice/voiceos/internal/callsession"
	"github.com/ghostvoice/voiceos/internal/config"
	"github.com/ghostvoice/voiceos/internal/engine"
	"github.com/ghostvoice/voiceos/internal/provider"
	"github.com/ghostvoice/voiceos/internal/telephony"
	"github.com/ghostvoice/voiceos/internal/tenant"
	"github.com/ghostvoice/voiceos/internal/webhook"
)

type fakeCarrier struct {
	name       string
	callID     string
	fail       error
	last       telephony.InitiateRequest
	onInitiate func()
}

func (f *fakeCarrier) InitiateCall(_ context.Context, req telephony.InitiateRequest) (telephony.InitiateResult, error) {
	f.last = req
	if f.onInitiate != nil {
		f.onInitiate()
	}
	if f.fail != nil {
		return telephony.InitiateResult{}, f.fail
	}
	return telephony.InitiateResult{CallID: f.callID, Status: "initiated", Provider: f.name}, nil
}

func (f *fakeCarrier) Name() string { return f.name }

type fakeControl struct {
	hangups []string
}

func (f *fakeControl) PlayAudio(context.Context, string, string, bool) error { return nil }
func (f *fakeControl) Speak(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeControl) GatherDigits(context.Context, string, telephony.GatherOptions) error {
	return nil
}
func (f *fakeControl) Hangup(_ context.Context, callControlID string) error {
	f.hangups = append(f.hangups, callControlID)
	return nil
}

type staticTenants struct{}

func (staticTenants) Load(_ context.Context, id string) (*tenant.Config, error) {
	return &tenant.Config{TenantID: id, Name: "Test Tenant"}, nil
}
func (staticTenants) List(context.Context) ([]string, error) { return []string{"default", "acme"}, nil }
func (staticTenants) Close() error                           { return nil }

type testServer struct {
	srv     *Server
	store   callsession.Store
	telnyx  *fakeCarrier
	twilio  *fakeCarrier
	control *fakeControl
	handler http.Handler
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	store := callsession.NewInMemoryStore(time.Minute)

	reg := provider.NewRegistry()
	reg.RegisterLLM("mock", &provider.MockLLM{Response: "Hello, how can I help you today?"})
	reg.RegisterSTT("mock", provider.NewMockSTT())
	reg.RegisterTTS("mock", provider.NewMockTTS())

	eng := engine.New(reg, staticTenants{}, engine.NewAudioCache(time.Minute), nil, cfg.PublicBaseURL, time.Second, time.Second)
	control := &fakeControl{}
	telnyxCarrier := &fakeCarrier{name: "telnyx", callID: "cc-test"}
	twilioCarrier := &fakeCarrier{name: "twilio", callID: "CA-test"}

	srv := New(cfg, store, staticTenants{}, eng,
		callflow.NewTelnyxAdapter(store, eng, control),
		callflow.NewTwilioAdapter(store, eng, "/v1/webhooks/twilio/gather"),
		map[string]telephony.Carrier{"telnyx": telnyxCarrier, "twilio": twilioCarrier},
		control,
		nil,
	)
	return &testServer{
		srv:     srv,
		store:   store,
		telnyx:  telnyxCarrier,
		twilio:  twilioCarrier,
		control: control,
		handler: srv.Router(),
	}
}

func testConfig() config.Config {
	return config.Config{
		PublicBaseURL:     "http://localhost:8080",
		EnforceSignatures: false,
		TelnyxAPIKey:      "telnyx-secret",
		TwilioAuthToken:   "twilio-token",
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func doForm(t *testing.T, handler http.Handler, path string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestInitiateTelnyxCall(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/calls/initiate", `{
		"to_number": "+15551234567",
		"from_number": "+15559876543",
		"provider": "telnyx",
		"connection_id": "conn-1",
		"script": "You are a booking assistant."
	}`, map[string]string{"X-Tenant-Id": "acme"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp initiateCallResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CallID != "cc-test" || resp.CallID == callsession.PlaceholderCallID {
		t.Fatalf("unexpected call id %q", resp.CallID)
	}
	if resp.Status != "initiated" || resp.Provider != "telnyx" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	sess, _ := ts.store.Get(context.Background(), "cc-test")
	if sess == nil {
		t.Fatal("session not stored")
	}
	if sess.State != callsession.StateInitiated || sess.TenantID != "acme" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.AIConfig.Prompt != "You are a booking assistant." {
		t.Fatalf("script not applied: %q", sess.AIConfig.Prompt)
	}
	if ts.telnyx.last.ClientState == "" {
		t.Fatal("client_state not passed to carrier")
	}
	if ts.telnyx.last.WebhookURL != "http://localhost:8080/v1/webhooks/telnyx" {
		t.Fatalf("webhook url %q", ts.telnyx.last.WebhookURL)
	}
}

func TestInitiateTelnyxRequiresConnectionID(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/calls/initiate", `{
		"to_number": "+15551234567",
		"from_number": "+15559876543",
		"provider": "telnyx"
	}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestInitiateInvalidProvider(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/calls/initiate", `{
		"to_number": "+1", "from_number": "+2", "provider": "bandwidth"
	}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestInitiateFailureLeavesNoSession(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.telnyx.fail = errors.New("carrier down")

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/calls/initiate", `{
		"to_number": "+15551234567",
		"from_number": "+15559876543",
		"provider": "telnyx",
		"connection_id": "conn-1"
	}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rec.Code)
	}
	if sess, _ := ts.store.Get(context.Background(), callsession.PlaceholderCallID); sess != nil {
		t.Fatal("failed initiation persisted a session")
	}
}

func TestInitiateTwilioCall(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/calls/initiate", `{
		"to_number": "+15551234567",
		"from_number": "+15559876543",
		"provider": "twilio"
	}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ts.twilio.last.TwiMLURL != "http://localhost:8080/v1/webhooks/twilio/answer" {
		t.Fatalf("twiml url %q", ts.twilio.last.TwiMLURL)
	}
	if ts.twilio.last.SessionID == "" {
		t.Fatal("session id not threaded to carrier")
	}
}

func TestInitiateTwilioParksPlaceholder(t *testing.T) {
	ts := newTestServer(t, testConfig())

	var parked *callsession.CallSession
	ts.twilio.onInitiate = func() {
		parked, _ = ts.store.Get(context.Background(), callsession.PlaceholderCallID)
	}

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/calls/initiate", `{
		"to_number": "+15551234567",
		"from_number": "+15559876543",
		"provider": "twilio",
		"script": "You are a booking assistant."
	}`, map[string]string{"X-Tenant-Id": "acme"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	if parked == nil {
		t.Fatal("session not parked under placeholder during initiation")
	}
	if parked.TenantID != "acme" || parked.AIConfig == (callsession.AIConfig{}) || parked.AIConfig.Prompt != "You are a booking assistant." {
		t.Fatalf("parked session lost config: %+v", parked)
	}

	if sess, _ := ts.store.Get(context.Background(), callsession.PlaceholderCallID); sess != nil {
		t.Fatal("placeholder not cleaned up after initiation")
	}
	sess, _ := ts.store.Get(context.Background(), "CA-test")
	if sess == nil || sess.SessionID != parked.SessionID {
		t.Fatalf("session not re-keyed to carrier id: %+v", sess)
	}
}

func TestInitiateTwilioAnswerRaceKeepsAdoptedSession(t *testing.T) {
	ts := newTestServer(t, testConfig())

	// The answer webhook fires while InitiateCall is still in flight.
	ts.twilio.onInitiate = func() {
		parked, _ := ts.store.Get(context.Background(), callsession.PlaceholderCallID)
		if parked == nil {
			t.Fatal("no parked session for the answer webhook to adopt")
		}
		form := url.Values{
			"CallSid": {"CA-test"},
			"From":    {"+15559876543"},
			"To":      {"+15551234567"},
		}
		rec := doForm(t, ts.handler, "/v1/webhooks/twilio/answer?session_id="+parked.SessionID, form, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("answer webhook status %d", rec.Code)
		}
	}

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/calls/initiate", `{
		"to_number": "+15551234567",
		"from_number": "+15559876543",
		"provider": "twilio"
	}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	sess, _ := ts.store.Get(context.Background(), "CA-test")
	if sess == nil {
		t.Fatal("session missing after race")
	}
	if sess.State != callsession.StateSpeaking || sess.TurnCount != 1 {
		t.Fatalf("adopted session rolled back: state=%s turns=%d", sess.State, sess.TurnCount)
	}
	if s, _ := ts.store.Get(context.Background(), callsession.PlaceholderCallID); s != nil {
		t.Fatal("placeholder left behind after adoption")
	}
}

func TestInitiateTwilioFailureCleansPlaceholder(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.twilio.fail = errors.New("carrier down")

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/calls/initiate", `{
		"to_number": "+15551234567",
		"from_number": "+15559876543",
		"provider": "twilio"
	}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rec.Code)
	}
	if sess, _ := ts.store.Get(context.Background(), callsession.PlaceholderCallID); sess != nil {
		t.Fatal("failed initiation left a placeholder session")
	}
}

func TestGetCall(t *testing.T) {
	ts := newTestServer(t, testConfig())
	sess := callsession.New(callsession.Params{
		TenantID:      "acme",
		Carrier:       callsession.CarrierTelnyx,
		CarrierCallID: "cc-1",
	})
	ts.store.Store(context.Background(), sess)

	rec := doJSON(t, ts.handler, http.MethodGet, "/v1/calls/cc-1", "", map[string]string{"X-Tenant-Id": "acme"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var got callsession.CallSession
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SessionID != sess.SessionID {
		t.Fatalf("wrong session returned")
	}

	rec = doJSON(t, ts.handler, http.MethodGet, "/v1/calls/cc-missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}

	rec = doJSON(t, ts.handler, http.MethodGet, "/v1/calls/cc-1", "", map[string]string{"X-Tenant-Id": "other"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rec.Code)
	}
}

func TestEndCallHangsUpTelnyx(t *testing.T) {
	ts := newTestServer(t, testConfig())
	sess := callsession.New(callsession.Params{
		Carrier:       callsession.CarrierTelnyx,
		CarrierCallID: "cc-1",
	})
	ts.store.Store(context.Background(), sess)

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/calls/end/cc-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(ts.control.hangups) != 1 || ts.control.hangups[0] != "cc-1" {
		t.Fatalf("hangup not issued: %v", ts.control.hangups)
	}
	got, _ := ts.store.Get(context.Background(), "cc-1")
	if got.State != callsession.StateEnded {
		t.Fatalf("state %s, want ended", got.State)
	}
}

func TestTelnyxWebhookRoundTrip(t *testing.T) {
	ts := newTestServer(t, testConfig())
	sess := callsession.New(callsession.Params{
		Carrier:       callsession.CarrierTelnyx,
		CarrierCallID: "cc-1",
	})
	ts.store.Store(context.Background(), sess)

	body := `{"data":{"event_type":"call.answered","call_control_id":"cc-1"}}`
	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/webhooks/telnyx", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	got, _ := ts.store.Get(context.Background(), "cc-1")
	if got.State != callsession.StateSpeaking {
		t.Fatalf("state %s, want speaking", got.State)
	}
}

func TestTelnyxWebhookSignatureEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceSignatures = true
	ts := newTestServer(t, cfg)

	body := `{"data":{"event_type":"call.answered","call_control_id":"cc-1"}}`

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/webhooks/telnyx", body, nil)
	if !strings.Contains(rec.Body.String(), "invalid signature") {
		t.Fatalf("unsigned webhook accepted: %s", rec.Body.String())
	}

	sess := callsession.New(callsession.Params{
		Carrier:       callsession.CarrierTelnyx,
		CarrierCallID: "cc-1",
	})
	ts.store.Store(context.Background(), sess)

	signature := webhook.SignTelnyx("telnyx-secret", "1700000000", []byte(body))
	rec = doJSON(t, ts.handler, http.MethodPost, "/v1/webhooks/telnyx", body,
		map[string]string{"Telnyx-Signature": signature})
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("signed webhook rejected: %s", rec.Body.String())
	}
}

func TestTwilioAnswerWebhook(t *testing.T) {
	ts := newTestServer(t, testConfig())

	form := url.Values{}
	form.Set("CallSid", "CA100")
	form.Set("From", "+15559876543")
	form.Set("To", "+15551234567")

	rec := doForm(t, ts.handler, "/v1/webhooks/twilio/answer", form, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<Gather") {
		t.Fatalf("expected gather twiml: %s", rec.Body.String())
	}
}

func TestTwilioSignatureEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceSignatures = true
	ts := newTestServer(t, cfg)

	form := url.Values{}
	form.Set("CallSid", "CA100")
	form.Set("CallStatus", "ringing")

	rec := doForm(t, ts.handler, "/v1/webhooks/twilio/status", form, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unsigned webhook status %d, want 403", rec.Code)
	}

	params := map[string]string{"CallSid": "CA100", "CallStatus": "ringing"}
	signature := webhook.SignTwilio("twilio-token", "http://localhost:8080/v1/webhooks/twilio/status", params)
	rec = doForm(t, ts.handler, "/v1/webhooks/twilio/status", form,
		map[string]string{"X-Twilio-Signature": signature})
	if rec.Code != http.StatusOK {
		t.Fatalf("signed webhook status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTwilioStatusUpdatesSession(t *testing.T) {
	ts := newTestServer(t, testConfig())

	form := url.Values{}
	form.Set("CallSid", "CA200")
	form.Set("CallStatus", "in-progress")

	rec := doForm(t, ts.handler, "/v1/webhooks/twilio/status", form, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	sess, _ := ts.store.Get(context.Background(), "CA200")
	if sess == nil || sess.State != callsession.StateAnswered {
		t.Fatalf("session not advanced: %+v", sess)
	}
}

func TestSynthesizeAndStream(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/voice/synthesize", `{"text":"hello world","voice_id":"sarah"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty audio body")
	}

	rec = doJSON(t, ts.handler, http.MethodGet, "/v1/voice/stream/unknown-session", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestListTenantsAndHealth(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := doJSON(t, ts.handler, http.MethodGet, "/v1/tenants", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "acme") {
		t.Fatalf("tenants: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, ts.handler, http.MethodGet, "/v1/tenants/acme", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tenant get: %d", rec.Code)
	}

	rec = doJSON(t, ts.handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}
