package event

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestShellHook_Matches(t *testing.T) {
	hook := NewShellHook("test", "echo hi", []EventType{ConsolidationStarted, ConsolidationApplied}, false)

	if !hook.Matches(ConsolidationStarted) {
		t.Error("should match ConsolidationStarted")
	}
	if !hook.Matches(ConsolidationApplied) {
		t.Error("should match ConsolidationApplied")
	}
	if hook.Matches(EditApplied) {
		t.Error("should not match EditApplied")
	}
}

func TestShellHook_Execute(t *testing.T) {
	hook := NewShellHook("test", "true", []EventType{ConsolidationStarted}, false)

	ev := NewEvent(ConsolidationStarted, map[string]interface{}{"user_id": "u1"})
	err := hook.Handle(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShellHook_Failure(t *testing.T) {
	hook := NewShellHook("test", "false", []EventType{ConsolidationStarted}, true)

	ev := NewEvent(ConsolidationStarted, nil)
	err := hook.Handle(ev)
	if err == nil {
		t.Fatal("expected error from failed shell command")
	}
}

func TestWebhookHook_Execute(t *testing.T) {
	var received struct {
		mu   sync.Mutex
		body []byte
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received.mu.Lock()
		received.body = body
		received.mu.Unlock()
		w.WriteHeader(200)
	}))
	defer server.Close()

	hook := NewWebhookHook("test", server.URL, []EventType{ConsolidationConflict}, true)
	ev := NewEvent(ConsolidationConflict, map[string]interface{}{"user_id": "u1", "session_id": "s1"})
	err := hook.Handle(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	received.mu.Lock()
	defer received.mu.Unlock()

	var payload Event
	if err := json.Unmarshal(received.body, &payload); err != nil {
		t.Fatalf("failed to parse webhook payload: %v", err)
	}
	if payload.Type != ConsolidationConflict {
		t.Errorf("expected ConsolidationConflict, got %s", payload.Type)
	}
}

func TestWebhookHook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	hook := NewWebhookHook("test", server.URL, []EventType{ExtractionFailed}, true)
	err := hook.Handle(NewEvent(ExtractionFailed, nil))
	if err == nil {
		t.Fatal("expected error from 500 status")
	}
}

func TestLogHook_Execute(t *testing.T) {
	logger := &testLogger{}
	hook := NewLogHook("test", []EventType{ConsolidationStarted}, logger, "info")

	ev := NewEvent(ConsolidationStarted, map[string]interface{}{"user_id": "u1"})
	err := hook.Handle(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// LogHook with a FullLogger calls Info; testLogger implements FullLogger
	// so the warn path won't be used here.
}

func TestLogHook_AlwaysNonBlocking(t *testing.T) {
	hook := NewLogHook("test", nil, &testLogger{}, "debug")
	if hook.IsBlocking() {
		t.Error("log hook should always be non-blocking")
	}
}

func TestBaseHook_MatchesAll(t *testing.T) {
	h := &baseHook{name: "all", events: nil}
	if !h.Matches(ConsolidationStarted) {
		t.Error("nil events should match everything")
	}
	if !h.Matches(SessionLogged) {
		t.Error("nil events should match everything")
	}
}

func TestBaseHook_MatchesNone(t *testing.T) {
	h := &baseHook{name: "specific", events: []EventType{EditApplied}}
	if h.Matches(ConsolidationStarted) {
		t.Error("should not match ConsolidationStarted")
	}
}
