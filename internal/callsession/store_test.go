package callsession

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(time.Minute)
	defer store.Close()

	s := New(Params{Carrier: CarrierTelnyx, CarrierCallID: "cc-1", ToNumber: "+15550001111"})
	if err := store.Store(ctx, s); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := store.Get(ctx, "cc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatalf("Get() returned nil for stored session")
	}
	if got.SessionID != s.SessionID || got.ToNumber != s.ToNumber {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestGetMissingReturnsNilNotError(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() on missing key error = %v, want nil", err)
	}
	if got != nil {
		t.Fatalf("Get() on missing key = %+v, want nil", got)
	}
}

func TestGetExpiredReturnsNil(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(10 * time.Millisecond)
	s := New(Params{Carrier: CarrierTwilio, CarrierCallID: "CAexp"})
	if err := store.Store(ctx, s); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	time.Sleep(25 * time.Millisecond)
	got, err := store.Get(ctx, "CAexp")
	if err != nil {
		t.Fatalf("Get() on expired key error = %v, want nil", err)
	}
	if got != nil {
		t.Fatalf("Get() on expired key = %+v, want nil", got)
	}

	store.mu.RLock()
	_, ok := store.m[storeKey("CAexp")]
	store.mu.RUnlock()
	if ok {
		t.Fatal("expired entry still present after Get()")
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(time.Minute)
	s := New(Params{Carrier: CarrierTelnyx, CarrierCallID: "cc-del"})
	if err := store.Store(ctx, s); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := store.Delete(ctx, "cc-del"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err := store.Get(ctx, "cc-del")
	if err != nil || got != nil {
		t.Fatalf("Get() after delete = (%+v, %v), want (nil, nil)", got, err)
	}
}

func TestAppendHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(time.Minute)
	s := New(Params{Carrier: CarrierTwilio, CarrierCallID: "CAapp"})
	if err := store.Store(ctx, s); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if err := store.AppendTranscript(ctx, "CAapp", SpeakerCaller, "hi"); err != nil {
		t.Fatalf("AppendTranscript() error = %v", err)
	}
	if err := store.AppendEvent(ctx, "CAapp", "dtmf_received", map[string]any{"digits": "5"}); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}

	got, err := store.Get(ctx, "CAapp")
	if err != nil || got == nil {
		t.Fatalf("Get() = (%+v, %v)", got, err)
	}
	if len(got.Transcript) != 1 || got.Transcript[0].Speaker != SpeakerCaller {
		t.Fatalf("transcript not appended: %+v", got.Transcript)
	}
	if len(got.Events) != 1 || got.Events[0].Data["digits"] != "5" {
		t.Fatalf("event not appended: %+v", got.Events)
	}
}

func TestAppendOnMissingSessionFails(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	if err := store.AppendTranscript(context.Background(), "ghost", SpeakerAI, "hello"); err == nil {
		t.Fatalf("AppendTranscript() on missing session should error")
	}
}

func TestNewStoreDefaultsToInMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "", time.Minute)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()
	if _, ok := store.(*InMemoryStore); !ok {
		t.Fatalf("NewStore(\"\") = %T, want *InMemoryStore", store)
	}
}
