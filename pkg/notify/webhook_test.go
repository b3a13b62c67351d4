package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// capturingHandler decodes each webhook POST. Notify delivers
// synchronously, so no locking is needed.
type capturingHandler struct {
	requests int
	last     webhookPayload
	err      error
}

func (h *capturingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.requests++
	h.err = json.NewDecoder(r.Body).Decode(&h.last)
}

func TestWebhookPostsOneEmbedPerEvent(t *testing.T) {
	h := &capturingHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	s := NewWebhookSink(srv.URL)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Notify(Event{
		Type:       AttackCompleted,
		At:         at,
		Session:    "s1",
		Confidence: 0.84,
		Box:        &Box{X: 400, Y: 300, W: 60, H: 60},
		DurationMs: 12500,
	})

	if h.requests != 1 {
		t.Fatalf("requests = %d, want 1", h.requests)
	}
	if h.err != nil {
		t.Fatalf("payload did not decode: %v", h.err)
	}
	if len(h.last.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(h.last.Embeds))
	}

	e := h.last.Embeds[0]
	if e.Title != "Attack completed" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Color != colorOrange {
		t.Errorf("color = %#x, want %#x", e.Color, colorOrange)
	}
	if e.Timestamp != at.Format(time.RFC3339) {
		t.Errorf("timestamp = %q", e.Timestamp)
	}

	fields := map[string]string{}
	for _, f := range e.Fields {
		fields[f.Name] = f.Value
	}
	want := map[string]string{
		"Confidence": "0.84",
		"Box":        "60x60 at (400,300)",
		"Duration":   "12.5s",
		"Session":    "s1",
	}
	for name, value := range want {
		if fields[name] != value {
			t.Errorf("field %s = %q, want %q", name, fields[name], value)
		}
	}
	if len(e.Fields) != len(want) {
		t.Errorf("fields = %d, want %d: %+v", len(e.Fields), len(want), e.Fields)
	}
}

func TestWebhookTitleAndColorPerType(t *testing.T) {
	h := &capturingHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()
	s := NewWebhookSink(srv.URL)

	tests := []struct {
		typ   Type
		title string
		color int
	}{
		{Started, "Bot started", colorGreen},
		{Stopped, "Bot stopped", colorRed},
		{LockAcquired, "Target locked", colorGreen},
		{LockLost, "Target lost", colorRed},
		{AttackStarted, "Attack started", colorOrange},
		{AttackCompleted, "Attack completed", colorOrange},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			s.Notify(Event{Type: tt.typ, At: time.Unix(1000, 0)})
			if len(h.last.Embeds) != 1 {
				t.Fatalf("embeds = %d, want 1", len(h.last.Embeds))
			}
			e := h.last.Embeds[0]
			if e.Title != tt.title {
				t.Errorf("title = %q, want %q", e.Title, tt.title)
			}
			if e.Color != tt.color {
				t.Errorf("color = %#x, want %#x", e.Color, tt.color)
			}
		})
	}
}

func TestWebhookZeroFieldsOmitted(t *testing.T) {
	h := &capturingHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	NewWebhookSink(srv.URL).Notify(Event{Type: Started, At: time.Unix(1000, 0)})
	if n := len(h.last.Embeds[0].Fields); n != 0 {
		t.Errorf("fields = %d for an empty event, want 0", n)
	}
}

func TestWebhookSwallowsServerErrors(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL)
	// Delivery failure must be absorbed, never surfaced to the caller.
	s.Notify(Event{Type: LockLost, At: time.Unix(1000, 0), Reason: "rejection limit reached"})
	if requests != 1 {
		t.Fatalf("requests = %d, want 1", requests)
	}
}
