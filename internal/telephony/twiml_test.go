package telephony

import (
	"strings"
	"testing"
)

func TestAnswerDocumentGreetsAndGathers(t *testing.T) {
	doc, err := AnswerDocument("Hello from the assistant", false, true, 1, 5, "/v1/webhooks/twilio/gather")
	if err != nil {
		t.Fatalf("AnswerDocument: %v", err)
	}
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<Response>`,
		`<Say voice="Alice" language="en-US">Hello from the assistant</Say>`,
		`numDigits="1"`,
		`action="/v1/webhooks/twilio/gather"`,
		`method="POST"`,
		`Press any digit`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("missing %q in:\n%s", want, doc)
		}
	}
}

func TestAnswerDocumentRecord(t *testing.T) {
	doc, err := AnswerDocument("", true, false, 0, 0, "")
	if err != nil {
		t.Fatalf("AnswerDocument: %v", err)
	}
	if !strings.Contains(doc, `<Record`) || !strings.Contains(doc, `finishOnKey="*"`) {
		t.Fatalf("expected record verb, got:\n%s", doc)
	}
	if strings.Contains(doc, "<Say") {
		t.Fatalf("unexpected say verb in:\n%s", doc)
	}
}

func TestResponseDocumentRedirectsOrHangsUp(t *testing.T) {
	doc, err := ResponseDocument("One moment", "/v1/webhooks/twilio/gather")
	if err != nil {
		t.Fatalf("ResponseDocument: %v", err)
	}
	if !strings.Contains(doc, `<Redirect method="POST">/v1/webhooks/twilio/gather</Redirect>`) {
		t.Fatalf("expected redirect, got:\n%s", doc)
	}
	if strings.Contains(doc, "<Hangup") {
		t.Fatalf("unexpected hangup in:\n%s", doc)
	}

	doc, err = ResponseDocument("Goodbye", "")
	if err != nil {
		t.Fatalf("ResponseDocument: %v", err)
	}
	if !strings.Contains(doc, `<Hangup></Hangup>`) {
		t.Fatalf("expected hangup when no next action, got:\n%s", doc)
	}
}

func TestGatherDocumentPrompt(t *testing.T) {
	doc, err := GatherDocument(1, 5, "/v1/webhooks/twilio/gather")
	if err != nil {
		t.Fatalf("GatherDocument: %v", err)
	}
	if !strings.Contains(doc, "Please enter your choice") {
		t.Fatalf("missing menu prompt in:\n%s", doc)
	}
}

func TestTwiMLVerbOrderPreserved(t *testing.T) {
	d := &TwiML{}
	d.Say("first").Say("second").Hangup()
	doc, err := d.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Index(doc, "first") > strings.Index(doc, "second") {
		t.Fatalf("verb order not preserved:\n%s", doc)
	}
}

func TestTwiMLEscapesCallerText(t *testing.T) {
	d := &TwiML{}
	d.Say(`reply with <Hangup/> & more`)
	doc, err := d.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(doc, "<Hangup/>") {
		t.Fatalf("caller text not escaped:\n%s", doc)
	}
	if !strings.Contains(doc, "&lt;Hangup/&gt; &amp; more") {
		t.Fatalf("expected escaped text, got:\n%s", doc)
	}
}
