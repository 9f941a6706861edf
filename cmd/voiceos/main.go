package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghostvoice/voiceos/internal/callflow"
	"github.com/ghostvoice/voiceos/internal/callsession"
	"github.com/ghostvoice/voiceos/internal/config"
	"github.com/ghostvoice/voiceos/internal/engine"
	"github.com/ghostvoice/voiceos/internal/httpapi"
	"github.com/ghostvoice/voiceos/internal/observability"
	"github.com/ghostvoice/voiceos/internal/provider"
	"github.com/ghostvoice/voiceos/internal/telephony"
	"github.com/ghostvoice/voiceos/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := callsession.NewStore(ctx, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("session store init failed: %v", err)
	}
	defer store.Close()

	tenants, err := tenant.NewLoader(ctx, cfg.DatabaseURL, cfg.TenantDir)
	if err != nil {
		log.Fatalf("tenant loader init failed: %v", err)
	}
	defer tenants.Close()

	registry, err := buildRegistry(cfg)
	if err != nil {
		log.Fatalf("provider registry init failed: %v", err)
	}

	eng := engine.New(
		registry,
		tenants,
		engine.NewAudioCache(cfg.SessionTTL),
		metrics,
		cfg.PublicBaseURL,
		cfg.LLMTimeout,
		cfg.TTSTimeout,
	)

	telnyxCarrier := telephony.NewTelnyx(cfg.TelnyxAPIKey, cfg.CarrierTimeout)
	twilioCarrier := telephony.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.CarrierTimeout)
	carriers := map[string]telephony.Carrier{
		telnyxCarrier.Name(): telnyxCarrier,
		twilioCarrier.Name(): twilioCarrier,
	}

	telnyxAdapter := callflow.NewTelnyxAdapter(store, eng, telnyxCarrier)
	twilioAdapter := callflow.NewTwilioAdapter(store, eng, "/v1/webhooks/twilio/gather")

	api := httpapi.New(cfg, store, tenants, eng, telnyxAdapter, twilioAdapter, carriers, telnyxCarrier, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// buildRegistry wires every configured capability provider. Mock providers
// are always registered so keyless environments still boot.
func buildRegistry(cfg config.Config) (*provider.Registry, error) {
	reg := provider.NewRegistry()

	reg.RegisterLLM("mock", provider.NewMockLLM())
	reg.RegisterSTT("mock", provider.NewMockSTT())
	reg.RegisterTTS("mock", provider.NewMockTTS())

	if cfg.OpenAIAPIKey != "" {
		llm, err := provider.NewOpenAILLM(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout)
		if err != nil {
			return nil, err
		}
		reg.RegisterLLM("openai", llm)
		log.Printf("llm provider registered: openai (%s)", cfg.OpenAIModel)
	}
	if cfg.LocalLLMURL != "" {
		llm, err := provider.NewLocalLLM(cfg.LocalLLMURL, cfg.OpenAIModel, cfg.LLMTimeout)
		if err != nil {
			return nil, err
		}
		reg.RegisterLLM("local", llm)
		log.Printf("llm provider registered: local (%s)", cfg.LocalLLMURL)
	}

	if cfg.DeepgramAPIKey != "" {
		reg.RegisterSTT("deepgram", provider.NewDeepgramSTT(cfg.DeepgramAPIKey, cfg.STTTimeout))
		log.Printf("stt provider registered: deepgram")
	}
	if cfg.WhisperURL != "" {
		reg.RegisterSTT("whisper", provider.NewWhisperSTT(cfg.WhisperURL, cfg.STTTimeout))
		log.Printf("stt provider registered: whisper (%s)", cfg.WhisperURL)
	}

	if cfg.ElevenLabsKey != "" {
		reg.RegisterTTS("elevenlabs", provider.NewElevenLabsTTS(cfg.ElevenLabsKey, cfg.TTSTimeout))
		log.Printf("tts provider registered: elevenlabs")
	}

	// An STT fallback chain replaces the primary under its own name, so
	// tenant provider maps keep working unchanged.
	if cfg.STTFallback != "" && cfg.STTFallback != cfg.STTProvider {
		primary, err := reg.STT(cfg.STTProvider)
		if err != nil {
			return nil, err
		}
		secondary, err := reg.STT(cfg.STTFallback)
		if err != nil {
			return nil, err
		}
		reg.RegisterSTT(cfg.STTProvider, provider.NewFallbackSTT(primary, secondary, true))
		log.Printf("stt fallback chain: %s -> %s", cfg.STTProvider, cfg.STTFallback)
	}

	reg.SetDefaults(cfg.LLMProvider, cfg.STTProvider, cfg.TTSProvider)

	if _, err := reg.LLM(cfg.LLMProvider); err != nil {
		return nil, err
	}
	if _, err := reg.STT(cfg.STTProvider); err != nil {
		return nil, err
	}
	if _, err := reg.TTS(cfg.TTSProvider); err != nil {
		return nil, err
	}
	return reg, nil
}
