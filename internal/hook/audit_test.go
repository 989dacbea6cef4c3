package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestAuditHook_NameAndPriority(t *testing.T) {
	t.Parallel()
	h := NewAuditHook(&bytes.Buffer{})
	if h.Name() != AuditHookName {
		t.Errorf("name = %q, want %q", h.Name(), AuditHookName)
	}
	if h.Priority() != math.MaxInt {
		t.Errorf("priority = %d, want math.MaxInt", h.Priority())
	}
}

func TestAuditHook_WritesJSONLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewAuditHook(&buf)
	h.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	err := h.Execute(context.Background(), &Context{
		Event: Expire,
		Name:  AuditHookName,
		Data:  map[string]any{"priority": 40},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rec AuditRecord
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON line %q: %v", buf.String(), err)
	}
	if rec.Event != Expire {
		t.Errorf("event = %q, want %q", rec.Event, Expire)
	}
	if rec.Handler != AuditHookName {
		t.Errorf("handler = %q, want %q", rec.Handler, AuditHookName)
	}
	if !rec.Timestamp.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", rec.Timestamp)
	}
	if rec.Data["priority"] != float64(40) {
		t.Errorf("data = %v, want priority 40", rec.Data)
	}
}

func TestAuditHook_OneLinePerCall(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewAuditHook(&buf)

	for range 3 {
		if err := h.Execute(context.Background(), &Context{Event: Expire, Name: AuditHookName}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("got %d lines, want 3", len(lines))
	}
	if strings.Contains(lines[0], `"data"`) {
		t.Errorf("nil data should be omitted: %s", lines[0])
	}
}
