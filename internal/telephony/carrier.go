package telephony

import "context"

// InitiateRequest carries everything either carrier needs to place an
// outbound call. Telnyx consumes ConnectionID and ClientState; Twilio
// consumes TwiMLURL and SessionID.
type InitiateRequest struct {
	To           string
	From         string
	WebhookURL   string
	ConnectionID string
	ClientState  string
	TwiMLURL     string
	SessionID    string
	StatusURL    string
}

type InitiateResult struct {
	CallID   string
	Status   string
	Provider string
}

// Carrier places outbound calls. Both carriers implement it; only Telnyx
// exposes mid-call control, Twilio steers calls through TwiML responses.
type Carrier interface {
	InitiateCall(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	Name() string
}

// CallController issues mid-call commands against an async carrier.
type CallController interface {
	PlayAudio(ctx context.Context, callControlID, audioURL string, loop bool) error
	Speak(ctx context.Context, callControlID, text, language, voice string) error
	GatherDigits(ctx context.Context, callControlID string, opts GatherOptions) error
	Hangup(ctx context.Context, callControlID string) error
}

type GatherOptions struct {
	MaxDigits         int
	TimeoutSecs       int
	ValidDigits       string
	TerminatingDigit  string
	InterDigitTimeout int
}

// DefaultGatherOptions matches the single-digit menu prompt used by the
// conversation loop.
func DefaultGatherOptions() GatherOptions {
	return GatherOptions{
		MaxDigits:         1,
		TimeoutSecs:       5,
		ValidDigits:       "0123456789#*",
		TerminatingDigit:  "#",
		InterDigitTimeout: 5,
	}
}
