package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Twilio places outbound calls through the 2010-04-01 REST API. There are
// no mid-call commands; Twilio fetches TwiML from our webhook endpoints to
// learn what to do next.
type Twilio struct {
	accountSID string
	authToken  string
	baseURL    string
	client     *http.Client
}

func NewTwilio(accountSID, authToken string, timeout time.Duration) *Twilio {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    "https://api.twilio.com/2010-04-01",
		client:     &http.Client{Timeout: timeout},
	}
}

func (t *Twilio) Name() string { return "twilio" }

func (t *Twilio) InitiateCall(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if t.accountSID == "" || t.authToken == "" {
		return InitiateResult{}, errors.New("twilio credentials not configured")
	}

	// Twilio fetches this URL to drive the call; the session id rides along
	// as a query param so the answer handler can find its session.
	callbackURL := req.TwiMLURL
	if req.SessionID != "" {
		sep := "?"
		if strings.Contains(callbackURL, "?") {
			sep = "&"
		}
		callbackURL += sep + "session_id=" + url.QueryEscape(req.SessionID)
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Url", callbackURL)
	form.Set("Method", "POST")
	form.Set("Timeout", "15")
	if req.StatusURL != "" {
		form.Set("StatusCallback", req.StatusURL)
		form.Set("StatusCallbackEvent", "initiated completed failed")
	}

	var out struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := t.postForm(ctx, "/Accounts/"+t.accountSID+"/Calls.json", form, &out); err != nil {
		return InitiateResult{}, err
	}
	if out.SID == "" {
		return InitiateResult{}, errors.New("twilio response missing call sid")
	}

	log.Printf("[TWILIO] call initiated: %s", out.SID)
	return InitiateResult{
		CallID:   out.SID,
		Status:   "initiated",
		Provider: "twilio",
	}, nil
}

// SendSMS delivers a text message, used for post-call follow-ups.
func (t *Twilio) SendSMS(ctx context.Context, to, from, body string) (string, error) {
	if t.accountSID == "" || t.authToken == "" {
		return "", errors.New("twilio credentials not configured")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	var out struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := t.postForm(ctx, "/Accounts/"+t.accountSID+"/Messages.json", form, &out); err != nil {
		return "", err
	}

	log.Printf("[TWILIO] sms sent: %s (%s)", out.SID, out.Status)
	return out.SID, nil
}

func (t *Twilio) postForm(ctx context.Context, path string, form url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.SetBasicAuth(t.accountSID, t.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("twilio status %d: %s", res.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
