package telephony

import (
	"encoding/xml"
	"fmt"
)

// TwiML verbs. Twilio reads these top to bottom when it fetches a webhook
// response, so order in the Verbs slice is order of execution.

type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type Gather struct {
	XMLName   xml.Name `xml:"Gather"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	Say       *Say
}

type Record struct {
	XMLName     xml.Name `xml:"Record"`
	Timeout     int      `xml:"timeout,attr,omitempty"`
	FinishOnKey string   `xml:"finishOnKey,attr,omitempty"`
	PlayBeep    bool     `xml:"playBeep,attr"`
	Trim        string   `xml:"trim,attr,omitempty"`
}

type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type TwiML struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

func (d *TwiML) add(v any) *TwiML {
	d.Verbs = append(d.Verbs, v)
	return d
}

func (d *TwiML) Say(text string) *TwiML {
	return d.add(Say{Voice: "Alice", Language: "en-US", Text: text})
}

func (d *TwiML) Gather(numDigits, timeoutSecs int, actionURL, prompt string) *TwiML {
	g := Gather{
		NumDigits: numDigits,
		Timeout:   timeoutSecs,
		Action:    actionURL,
		Method:    "POST",
	}
	if prompt != "" {
		g.Say = &Say{Voice: "Alice", Language: "en-US", Text: prompt}
	}
	return d.add(g)
}

func (d *TwiML) Record() *TwiML {
	return d.add(Record{Timeout: 10, FinishOnKey: "*", PlayBeep: true, Trim: "trim-silence"})
}

func (d *TwiML) Redirect(actionURL string) *TwiML {
	return d.add(Redirect{Method: "POST", URL: actionURL})
}

func (d *TwiML) Hangup() *TwiML {
	return d.add(Hangup{})
}

// Render serializes the document with the XML declaration Twilio expects.
func (d *TwiML) Render() (string, error) {
	body, err := xml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal twiml: %w", err)
	}
	return xml.Header + string(body), nil
}

// AnswerDocument greets the caller, optionally starts recording, and
// optionally opens a DTMF gather.
func AnswerDocument(sayText string, record bool, gather bool, maxDigits, timeoutSecs int, gatherAction string) (string, error) {
	d := &TwiML{}
	if sayText != "" {
		d.Say(sayText)
	}
	if record {
		d.Record()
	}
	if gather {
		d.Gather(maxDigits, timeoutSecs, gatherAction, "Press any digit")
	}
	return d.Render()
}

// ResponseDocument speaks a reply and either redirects into the next
// conversation cycle or hangs up when the call is over.
func ResponseDocument(sayText, nextActionURL string) (string, error) {
	d := &TwiML{}
	if sayText != "" {
		d.Say(sayText)
	}
	if nextActionURL != "" {
		d.Redirect(nextActionURL)
	} else {
		d.Hangup()
	}
	return d.Render()
}

// GatherDocument opens a bare DTMF gather with a menu prompt.
func GatherDocument(numDigits, timeoutSecs int, actionURL string) (string, error) {
	d := &TwiML{}
	d.Gather(numDigits, timeoutSecs, actionURL, "Please enter your choice")
	return d.Render()
}
