package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider names to implementations. Selection happens at
// request time from the tenant's provider map, with a configured default;
// there is no provider class hierarchy, only this lookup table.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]LLMProvider
	stt map[string]STTProvider
	tts map[string]TTSProvider

	defaultLLM string
	defaultSTT string
	defaultTTS string
}

func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]LLMProvider),
		stt: make(map[string]STTProvider),
		tts: make(map[string]TTSProvider),
	}
}

func (r *Registry) RegisterLLM(name string, p LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = p
	if r.defaultLLM == "" {
		r.defaultLLM = name
	}
}

func (r *Registry) RegisterSTT(name string, p STTProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = p
	if r.defaultSTT == "" {
		r.defaultSTT = name
	}
}

func (r *Registry) RegisterTTS(name string, p TTSProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = p
	if r.defaultTTS == "" {
		r.defaultTTS = name
	}
}

// SetDefaults overrides which providers serve requests with no tenant
// preference. Empty names keep the current default.
func (r *Registry) SetDefaults(llm, stt, tts string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if llm != "" {
		r.defaultLLM = llm
	}
	if stt != "" {
		r.defaultSTT = stt
	}
	if tts != "" {
		r.defaultTTS = tts
	}
}

// LLM resolves a provider by name, falling back to the default. name "" means
// "whatever is configured".
func (r *Registry) LLM(name string) (LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultLLM
	}
	p, ok := r.llm[name]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
	return p, nil
}

func (r *Registry) STT(name string) (STTProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultSTT
	}
	p, ok := r.stt[name]
	if !ok {
		return nil, fmt.Errorf("unknown stt provider %q", name)
	}
	return p, nil
}

func (r *Registry) TTS(name string) (TTSProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultTTS
	}
	p, ok := r.tts[name]
	if !ok {
		return nil, fmt.Errorf("unknown tts provider %q", name)
	}
	return p, nil
}

// Names lists registered provider names per capability, sorted.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string][]string{}
	for name := range r.llm {
		out["llm"] = append(out["llm"], name)
	}
	for name := range r.stt {
		out["stt"] = append(out["stt"], name)
	}
	for name := range r.tts {
		out["tts"] = append(out["tts"], name)
	}
	for _, v := range out {
		sort.Strings(v)
	}
	return out
}
