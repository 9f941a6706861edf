package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ghostvoice/voiceos/internal/callsession"
	"github.com/ghostvoice/voiceos/internal/observability"
	"github.com/ghostvoice/voiceos/internal/provider"
	"github.com/ghostvoice/voiceos/internal/tenant"
)

// apologyMessage is spoken whenever response generation fails. Callers in
// the middle of a phone call must always hear something.
const apologyMessage = "I'm sorry, I encountered an error. Please try again."

const defaultMaxTurns = 10

// closingMessages maps an end reason to the farewell spoken before hangup.
var closingMessages = map[string]string{
	"completed": "Thank you for calling. Have a great day!",
	"failed":    "I apologize, but we experienced a technical issue.",
	"timeout":   "The call has timed out. Thank you.",
	"hangup":    "Thank you for calling. Goodbye!",
}

// Engine orchestrates one conversation turn: LLM text generation followed
// by TTS synthesis. Providers are resolved per tenant through the registry.
type Engine struct {
	registry   *provider.Registry
	tenants    tenant.Loader
	cache      *AudioCache
	metrics    *observability.Metrics
	baseURL    string
	llmTimeout time.Duration
	ttsTimeout time.Duration
}

func New(registry *provider.Registry, tenants tenant.Loader, cache *AudioCache, metrics *observability.Metrics, baseURL string, llmTimeout, ttsTimeout time.Duration) *Engine {
	if llmTimeout <= 0 {
		llmTimeout = 30 * time.Second
	}
	if ttsTimeout <= 0 {
		ttsTimeout = 15 * time.Second
	}
	return &Engine{
		registry:   registry,
		tenants:    tenants,
		cache:      cache,
		metrics:    metrics,
		baseURL:    baseURL,
		llmTimeout: llmTimeout,
		ttsTimeout: ttsTimeout,
	}
}

// GenerateResponse produces the next AI utterance. It never returns an
// error: any failure degrades to a fixed apology with no audio reference,
// and the call keeps going.
func (e *Engine) GenerateResponse(ctx context.Context, sess *callsession.CallSession, callerInput string) (string, string) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveTurnLatency(time.Since(start))
		}
	}()

	userMessage := callerInput
	if userMessage == "" {
		userMessage = "Start the conversation"
	}

	llm, err := e.registry.LLM(e.tenantProvider(ctx, sess.TenantID, "llm"))
	if err != nil {
		log.Printf("[CONVERSATION] llm lookup failed for %s: %v", sess.SessionID, err)
		return apologyMessage, ""
	}

	llmCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	defer cancel()
	result, err := llm.Generate(llmCtx, provider.GenerateRequest{
		SystemPrompt: buildSystemPrompt(sess),
		UserMessage:  userMessage,
		History:      historyFromTranscript(sess),
		TenantID:     sess.TenantID,
	})
	if err != nil {
		log.Printf("[CONVERSATION] generation failed for %s: %v", sess.SessionID, err)
		return apologyMessage, ""
	}

	audioRef := e.synthesize(ctx, sess, result.Text)
	log.Printf("[CONVERSATION] generated response for %s (turn %d)", sess.SessionID, sess.TurnCount)
	return result.Text, audioRef
}

// HandleDTMF acknowledges gathered digits. Digit-to-action routing lives
// with the tenant prompt; the engine just keeps the conversation moving.
func (e *Engine) HandleDTMF(ctx context.Context, sess *callsession.CallSession, digits string) (string, string) {
	log.Printf("[DTMF] received %q for %s", digits, sess.SessionID)
	text := fmt.Sprintf("You pressed %s. Processing your request...", digits)
	return text, e.synthesize(ctx, sess, text)
}

// HandleSilence re-prompts a quiet caller and counts the silence.
func (e *Engine) HandleSilence(ctx context.Context, sess *callsession.CallSession) (string, string) {
	log.Printf("[SILENCE] detected on %s", sess.SessionID)
	sess.Metrics.SilenceCount++
	text := "Are you still there? Please respond."
	return text, e.synthesize(ctx, sess, text)
}

// EndCall returns the farewell for the given end reason.
func (e *Engine) EndCall(sess *callsession.CallSession, reason string) string {
	message, ok := closingMessages[reason]
	if !ok {
		message = "Thank you for calling."
	}
	log.Printf("[END_CALL] %s (%s)", sess.SessionID, reason)
	return message
}

// TurnLimitReached reports whether the session has exhausted its budget of
// conversation turns. Both webhook adapters consult this one check.
func (e *Engine) TurnLimitReached(sess *callsession.CallSession) bool {
	max := sess.AIConfig.MaxTurns
	if max <= 0 {
		max = defaultMaxTurns
	}
	return sess.TurnCount >= max
}

// synthesize renders text to audio, caches it for the stream endpoint, and
// returns a reference URL the carrier can fetch. Failure yields "".
func (e *Engine) synthesize(ctx context.Context, sess *callsession.CallSession, text string) string {
	if text == "" {
		return ""
	}

	tts, err := e.registry.TTS(e.tenantProvider(ctx, sess.TenantID, "tts"))
	if err != nil {
		log.Printf("[TTS] provider lookup failed for %s: %v", sess.SessionID, err)
		return ""
	}

	ttsCtx, cancel := context.WithTimeout(ctx, e.ttsTimeout)
	defer cancel()
	result, err := tts.Synthesize(ttsCtx, provider.SynthesizeRequest{
		Text:      text,
		VoiceID:   sess.VoiceConfig.VoiceID,
		VoiceType: sess.VoiceConfig.VoiceType,
		Language:  sess.VoiceConfig.Language,
		TenantID:  sess.TenantID,
	})
	if err != nil {
		log.Printf("[TTS] synthesis failed for %s: %v", sess.SessionID, err)
		return ""
	}

	e.cache.Put(sess.SessionID, result.Audio, result.ContentType)
	return e.baseURL + "/v1/voice/stream/" + sess.SessionID
}

// Synthesize exposes tenant-scoped TTS for the synthesis endpoint.
func (e *Engine) Synthesize(ctx context.Context, tenantID string, req provider.SynthesizeRequest) (provider.SynthesizeResult, error) {
	tts, err := e.registry.TTS(e.tenantProvider(ctx, tenantID, "tts"))
	if err != nil {
		return provider.SynthesizeResult{}, err
	}
	ttsCtx, cancel := context.WithTimeout(ctx, e.ttsTimeout)
	defer cancel()
	req.TenantID = tenantID
	return tts.Synthesize(ttsCtx, req)
}

// Audio returns cached audio for a session, if any.
func (e *Engine) Audio(sessionID string) ([]byte, string, bool) {
	return e.cache.Get(sessionID)
}

func (e *Engine) tenantProvider(ctx context.Context, tenantID, capability string) string {
	if e.tenants == nil {
		return ""
	}
	cfg, err := e.tenants.Load(ctx, tenantID)
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Provider(capability)
}

func buildSystemPrompt(sess *callsession.CallSession) string {
	prompt := sess.AIConfig.Prompt
	if prompt == "" {
		prompt = "You are a helpful AI assistant for customer support."
	}

	personality := sess.AIConfig.PersonalityMode
	if personality == "" {
		personality = "professional"
	}
	prompt = fmt.Sprintf("%s\n\nPersonality: %s\n", prompt, personality)

	if len(sess.LeadData) > 0 {
		name := "Guest"
		if v, ok := sess.LeadData["name"].(string); ok && v != "" {
			name = v
		}
		prompt += fmt.Sprintf("Customer: %s\n", name)
	}

	prompt += fmt.Sprintf("Call turn: %d\n", sess.TurnCount)
	return prompt
}

// historyFromTranscript converts the session transcript into chat messages
// so the LLM sees the conversation so far.
func historyFromTranscript(sess *callsession.CallSession) []provider.Message {
	if len(sess.Transcript) == 0 {
		return nil
	}
	history := make([]provider.Message, 0, len(sess.Transcript))
	for _, entry := range sess.Transcript {
		role := "user"
		if entry.Speaker == callsession.SpeakerAI {
			role = "assistant"
		}
		history = append(history, provider.Message{Role: role, Content: entry.Text})
	}
	return history
}
