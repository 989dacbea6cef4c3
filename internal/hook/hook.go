// Package hook provides a typed registry of named extension handlers.
// Handlers are registered per event when the process starts and are
// looked up by name when a job asks for one.
package hook

import (
	"context"
	"log/slog"
)

// Event identifies a family of hooks.
type Event string

// Expire is the event fired once per expiration sweep for every handler.
const Expire Event = "expire"

// Context carries data available to a handler invocation. Uses request
// struct pattern (>3 fields).
type Context struct {
	Event Event

	// Name is the handler being invoked.
	Name string

	// Data is event-specific payload. It may be nil.
	Data map[string]any

	Logger *slog.Logger
}

// Handler is the extension point interface.
type Handler interface {
	// Name identifies the handler. It must be unique within an event.
	Name() string

	// Priority determines listing order within an event.
	// Lower values come first.
	Priority() int

	// Execute runs the handler logic.
	Execute(ctx context.Context, hctx *Context) error
}

// Func adapts a plain function to the Handler interface.
type Func struct {
	HandlerName string
	Prio        int
	Fn          func(ctx context.Context, hctx *Context) error
}

// Compile-time interface check.
var _ Handler = Func{}

// Name implements Handler.
func (f Func) Name() string { return f.HandlerName }

// Priority implements Handler.
func (f Func) Priority() int { return f.Prio }

// Execute implements Handler.
func (f Func) Execute(ctx context.Context, hctx *Context) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx, hctx)
}
