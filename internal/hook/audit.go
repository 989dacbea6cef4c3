package hook

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"sync"
	"time"
)

// AuditHookName is the name the audit hook registers under.
const AuditHookName = "audit"

// AuditRecord is one JSON Lines entry written by AuditHook.
type AuditRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     Event          `json:"event"`
	Handler   string         `json:"handler"`
	Data      map[string]any `json:"data,omitempty"`
}

// AuditHook writes a JSON Lines audit entry every time it is invoked.
// It sorts last among the handlers of an event.
type AuditHook struct {
	writer io.Writer
	mu     sync.Mutex
	now    func() time.Time
}

// NewAuditHook creates an audit hook that writes JSON Lines to w.
// In production, w is typically an *os.File; in tests, a *bytes.Buffer.
func NewAuditHook(w io.Writer) *AuditHook {
	return &AuditHook{
		writer: w,
		now:    time.Now,
	}
}

// Compile-time interface check.
var _ Handler = (*AuditHook)(nil)

// Name implements Handler.
func (a *AuditHook) Name() string { return AuditHookName }

// Priority returns math.MaxInt so the audit hook is listed last.
func (a *AuditHook) Priority() int { return math.MaxInt }

// Execute writes one JSON Lines record describing the invocation.
func (a *AuditHook) Execute(_ context.Context, hctx *Context) error {
	record := AuditRecord{
		Timestamp: a.now().UTC(),
		Event:     hctx.Event,
		Handler:   hctx.Name,
		Data:      hctx.Data,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return json.NewEncoder(a.writer).Encode(record)
}
